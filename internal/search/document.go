package search

import (
	"path/filepath"
	"strconv"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
)

// bookDocument is the shape a book takes in the Bleve index. Only what
// the library picker searches on is indexed; everything else stays in
// the store.
type bookDocument struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Filename  string `json:"filename"`
	Format    string `json:"format"`
	CreatedAt int64  `json:"created_at"` // Unix millis
}

func newBookDocument(book *domain.Book) *bookDocument {
	return &bookDocument{
		ID:        strconv.FormatInt(book.ID, 10),
		Title:     book.Title,
		Filename:  filepath.Base(book.Path),
		Format:    string(book.Format),
		CreatedAt: book.CreatedAt.UnixMilli(),
	}
}

// toMap converts the document to a map with lowercase field names so
// they match the index mapping. Bleve would otherwise index under the
// capitalized Go field names.
func (d *bookDocument) toMap() map[string]interface{} {
	return map[string]interface{}{
		"id":         d.ID,
		"title":      d.Title,
		"filename":   d.Filename,
		"format":     d.Format,
		"created_at": d.CreatedAt,
	}
}
