package domain

import "fmt"

// Chapter is one TOC entry, derived from document structure on open and
// never persisted. Target is a page number string or an opaque location
// reference, depending on format.
type Chapter struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// SearchResult is one in-document match reported by the rendering
// surface. Ephemeral; replaced wholesale on every searchResults event.
type SearchResult struct {
	Target  string `json:"target"`
	Excerpt string `json:"excerpt"`
}

// Rect is the bounding rectangle of a selection, in surface coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Selection is the active text selection of a reading session.
// Only one is tracked at a time; a newer selection replaces it.
type Selection struct {
	Text     string `json:"text"`
	RangeRef string `json:"range_ref,omitempty"`
	Rect     Rect   `json:"rect"`
}

// Theme names a reader color scheme.
type Theme string

// Reader themes.
const (
	ThemeWhite Theme = "white"
	ThemeSepia Theme = "sepia"
	ThemeDark  Theme = "dark"
)

// ReaderSettings are the display settings pushed to the rendering surface.
type ReaderSettings struct {
	Theme       Theme   `json:"theme"`
	FontSizePct int     `json:"font_size_pct"`
	LineHeight  float64 `json:"line_height"`
}

// DefaultReaderSettings returns the settings applied to a fresh session.
func DefaultReaderSettings() ReaderSettings {
	return ReaderSettings{
		Theme:       ThemeWhite,
		FontSizePct: 120,
		LineHeight:  1.6,
	}
}

// Validate checks settings bounds before they are pushed to the surface.
func (s ReaderSettings) Validate() error {
	switch s.Theme {
	case ThemeWhite, ThemeSepia, ThemeDark:
	default:
		return fmt.Errorf("unknown theme %q", s.Theme)
	}
	if s.FontSizePct < 50 || s.FontSizePct > 300 {
		return fmt.Errorf("font size %d%% out of range [50, 300]", s.FontSizePct)
	}
	if s.LineHeight < 1.0 || s.LineHeight > 3.0 {
		return fmt.Errorf("line height %.1f out of range [1.0, 3.0]", s.LineHeight)
	}
	return nil
}
