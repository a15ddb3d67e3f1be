package library

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfPageCount reads the page count from a PDF payload. Validation is
// relaxed: scanned and slightly malformed documents should still import.
func pdfPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return count, nil
}

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Metadata struct {
		Titles []string `xml:"title"`
	} `xml:"metadata"`
}

// epubTitle reads the dc:title from an EPUB payload's OPF package document,
// located via META-INF/container.xml per the OCF spec.
func epubTitle(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open epub container: %w", err)
	}

	container, err := readZipXML[epubContainer](zr, "META-INF/container.xml")
	if err != nil {
		return "", err
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("epub container lists no rootfile")
	}

	pkg, err := readZipXML[epubPackage](zr, container.Rootfiles[0].FullPath)
	if err != nil {
		return "", err
	}
	if len(pkg.Metadata.Titles) == 0 || pkg.Metadata.Titles[0] == "" {
		return "", fmt.Errorf("epub package carries no title")
	}
	return pkg.Metadata.Titles[0], nil
}

func readZipXML[T any](zr *zip.Reader, name string) (*T, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var out T
	if err := xml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &out, nil
}
