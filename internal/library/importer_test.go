package library

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	"github.com/pagemarkapp/pagemark-host/internal/search"
	"github.com/pagemarkapp/pagemark-host/internal/store"
	"github.com/pagemarkapp/pagemark-host/internal/store/blob"
	"github.com/pagemarkapp/pagemark-host/internal/store/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLibrary(t *testing.T) (*Service, *sqlite.Store, *blob.Store) {
	t.Helper()
	dir := t.TempDir()

	st, err := sqlite.Open(filepath.Join(dir, "library.db"), testLogger())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	payloads, err := blob.Open(filepath.Join(dir, "payloads"), testLogger())
	if err != nil {
		t.Fatalf("failed to open payload store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
		if err := payloads.Close(); err != nil {
			t.Errorf("failed to close payload store: %v", err)
		}
	})

	return NewService(st, payloads, store.NewNoopSearchIndexer(), testLogger()), st, payloads
}

// makeEPUB builds a minimal but well-formed EPUB container in memory.
func makeEPUB(t *testing.T, title string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	files := map[string]string{
		"mimetype": "application/epub+zip",
		"META-INF/container.xml": `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`,
		"OEBPS/content.opf": fmt.Sprintf(`<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" xmlns:dc="http://purl.org/dc/elements/1.1/" version="3.0">
  <metadata>
    <dc:title>%s</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest/>
  <spine/>
</package>`, title),
	}
	for name, content := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestImportAndDeleteSyncIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := sqlite.Open(filepath.Join(dir, "library.db"), testLogger())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	payloads, err := blob.Open(filepath.Join(dir, "payloads"), testLogger())
	if err != nil {
		t.Fatalf("failed to open payload store: %v", err)
	}
	index, err := search.NewIndex(search.Options{DataPath: dir, Logger: testLogger()})
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
		payloads.Close()
		index.Close()
	})
	svc := NewService(st, payloads, index, testLogger())

	book, err := svc.Import(ctx, "", "/inbox/voyage.epub", domain.FormatEPUB, makeEPUB(t, "The Voyage Out"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	res, err := index.Search(ctx, search.Params{Query: "voyage", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 1 || res.Hits[0].BookID != book.ID {
		t.Fatalf("search after import = %+v, want the imported book", res)
	}

	if err := svc.Delete(ctx, book.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	res, err = index.Search(ctx, search.Params{Query: "voyage", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Total != 0 {
		t.Errorf("search after delete found %d hits, want none", res.Total)
	}
}

func TestImportEPUBReadsTitle(t *testing.T) {
	svc, _, _ := newTestLibrary(t)
	ctx := context.Background()

	payload := makeEPUB(t, "The Voyage Out")
	book, err := svc.Import(ctx, "", "/inbox/voyage.epub", domain.FormatEPUB, payload)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if book.Title != "The Voyage Out" {
		t.Errorf("title = %q, want the OPF title", book.Title)
	}
	if book.Format != domain.FormatEPUB || !book.HasPayload {
		t.Errorf("unexpected book: %+v", book)
	}
	// Reflowable totals stay unknown until the surface builds its
	// location table.
	if book.TotalPositions != 0 {
		t.Errorf("total = %d, want 0 before first render", book.TotalPositions)
	}
}

func TestImportExplicitTitleWins(t *testing.T) {
	svc, _, _ := newTestLibrary(t)

	payload := makeEPUB(t, "Metadata Title")
	book, err := svc.Import(context.Background(), "Shelf Title", "/inbox/b.epub", domain.FormatEPUB, payload)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if book.Title != "Shelf Title" {
		t.Errorf("title = %q, want the caller's title", book.Title)
	}
}

func TestImportDerivesTitleFromFilename(t *testing.T) {
	svc, _, _ := newTestLibrary(t)

	// Not a real PDF: the page-count probe fails, the import still lands.
	payload := []byte("%PDF-1.4 not really")
	book, err := svc.Import(context.Background(), "", "/inbox/war_and-peace.pdf", domain.FormatPDF, payload)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if book.Title != "war and peace" {
		t.Errorf("title = %q, want filename-derived", book.Title)
	}
	if book.TotalPositions != 0 {
		t.Errorf("total = %d, want 0 when the probe fails", book.TotalPositions)
	}
}

func TestImportStoresPayload(t *testing.T) {
	svc, _, payloads := newTestLibrary(t)
	ctx := context.Background()

	payload := makeEPUB(t, "Stored")
	book, err := svc.Import(ctx, "", "/inbox/stored.epub", domain.FormatEPUB, payload)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	got, err := payloads.GetPayload(ctx, book.ID)
	if err != nil {
		t.Fatalf("GetPayload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("stored payload differs from imported bytes")
	}
}

func TestImportEmptyPayloadRejected(t *testing.T) {
	svc, st, _ := newTestLibrary(t)
	ctx := context.Background()

	if _, err := svc.Import(ctx, "X", "/inbox/x.pdf", domain.FormatPDF, nil); err == nil {
		t.Fatal("empty payload accepted")
	}
	books, err := st.ListBooks(ctx)
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) != 0 {
		t.Errorf("rejected import left %d book rows", len(books))
	}
}

func TestImportFileUnsupportedExtension(t *testing.T) {
	svc, _, _ := newTestLibrary(t)

	if _, err := svc.ImportFile(context.Background(), "/inbox/notes.txt"); err == nil {
		t.Error("unsupported extension accepted")
	}
}

func TestDeleteRemovesPayload(t *testing.T) {
	svc, st, payloads := newTestLibrary(t)
	ctx := context.Background()

	book, err := svc.Import(ctx, "", "/inbox/gone.epub", domain.FormatEPUB, makeEPUB(t, "Gone"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if err := svc.Delete(ctx, book.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := st.GetBook(ctx, book.ID); err == nil {
		t.Error("book row survived delete")
	}
	if _, err := payloads.GetPayload(ctx, book.ID); err == nil {
		t.Error("payload survived delete")
	}
}

func TestHasPath(t *testing.T) {
	svc, _, _ := newTestLibrary(t)
	ctx := context.Background()

	if _, err := svc.Import(ctx, "", "/inbox/seen.epub", domain.FormatEPUB, makeEPUB(t, "Seen")); err != nil {
		t.Fatalf("Import: %v", err)
	}

	seen, err := svc.HasPath(ctx, "/inbox/seen.epub")
	if err != nil {
		t.Fatalf("HasPath: %v", err)
	}
	if !seen {
		t.Error("HasPath = false for an imported path")
	}

	seen, err = svc.HasPath(ctx, "/inbox/new.epub")
	if err != nil {
		t.Fatalf("HasPath: %v", err)
	}
	if seen {
		t.Error("HasPath = true for an unknown path")
	}
}

func TestTitleFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/inbox/war_and_peace.pdf", "war and peace"},
		{"/inbox/Moby-Dick.epub", "Moby Dick"},
		{"plain.pdf", "plain"},
		{"/inbox/double__under.pdf", "double under"},
	}
	for _, tt := range tests {
		if got := titleFromPath(tt.path); got != tt.want {
			t.Errorf("titleFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestEPUBTitleErrors(t *testing.T) {
	if _, err := epubTitle([]byte("not a zip")); err == nil {
		t.Error("non-zip payload accepted")
	}

	// A zip without the OCF container is not an EPUB.
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("random.txt")
	f.Write([]byte("hello"))
	zw.Close()
	if _, err := epubTitle(buf.Bytes()); err == nil {
		t.Error("zip without container.xml accepted")
	}
}
