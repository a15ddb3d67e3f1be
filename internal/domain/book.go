// Package domain contains the core entities of the Pagemark host.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Format identifies the pagination model of a document.
type Format string

const (
	// FormatPDF is fixed-layout: positions are 1-based page numbers.
	FormatPDF Format = "pdf"
	// FormatEPUB is reflowable: positions index a rendering-engine
	// location table and are opaque outside one reading session.
	FormatEPUB Format = "epub"
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatEPUB:
		return FormatEPUB, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// FormatForPath guesses the format from a file extension.
func FormatForPath(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return FormatPDF, nil
	case strings.HasSuffix(lower, ".epub"):
		return FormatEPUB, nil
	default:
		return "", fmt.Errorf("unsupported document %q", path)
	}
}

// Book is an imported document. It is the aggregate root: every
// annotation references exactly one book and is removed with it.
type Book struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Path   string `json:"path"`
	Format Format `json:"format"`

	// CurrentPosition/TotalPositions hold the reconciled reading progress
	// in the document's own unit: page number for PDF, location index for
	// EPUB. TotalPositions is 0 until the first render establishes it.
	CurrentPosition int64 `json:"current_position"`
	TotalPositions  int64 `json:"total_positions"`

	// LocationGeneration records the sampling granularity of the location
	// table the positions index into. Zero for fixed-layout documents.
	// Reflowable positions are only comparable within one generation.
	LocationGeneration int64 `json:"location_generation,omitempty"`

	// HasPayload reports whether the document bytes are held in the
	// payload store (import by value) or only referenced by Path.
	HasPayload bool `json:"has_payload"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressPercent returns reading progress in [0, 100].
// Returns 0 while TotalPositions is unknown.
func (b *Book) ProgressPercent() float64 {
	if b.TotalPositions <= 0 {
		return 0
	}
	pct := float64(b.CurrentPosition) / float64(b.TotalPositions) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// ValidPosition reports whether pos satisfies the progress invariant
// 0 <= pos <= TotalPositions, treating an unknown total as unbounded.
func (b *Book) ValidPosition(pos int64) bool {
	if pos < 0 {
		return false
	}
	if b.TotalPositions > 0 && pos > b.TotalPositions {
		return false
	}
	return true
}
