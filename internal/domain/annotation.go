package domain

import "time"

// PreviewPlaceholder is stored as the bookmark preview when the
// rendering surface yields no text for the bookmarked position.
const PreviewPlaceholder = "…"

// Bookmark is a saved reading position with a short preview snippet.
// At most one bookmark exists per (book, position) pair; the toggle in
// the annotation manager enforces this, the schema does not.
type Bookmark struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"book_id"`
	Position  int64     `json:"position"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a free-text note tied to a position. Selection carries the
// quoted source text; it positions nothing, the comment sits at Position.
type Comment struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"book_id"`
	Position  int64     `json:"position"`
	Selection string    `json:"selection,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Highlight is a color-tagged text range. RangeRef is the opaque,
// format-specific range descriptor the surface issued for the selection;
// removal matches on it exactly.
type Highlight struct {
	ID           string    `json:"id"`
	BookID       int64     `json:"book_id"`
	RangeRef     string    `json:"range_ref"`
	Color        string    `json:"color"`
	SelectedText string    `json:"selected_text,omitempty"`
	Position     int64     `json:"position"`
	CreatedAt    time.Time `json:"created_at"`
}
