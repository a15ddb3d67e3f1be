// Package bridge implements the asynchronous JSON message protocol between
// the host process and the embedded rendering surface. The surface is a
// separate fault domain: nothing it sends may crash the host, and nothing
// the host sends is acknowledged.
package bridge

import (
	"encoding/json/v2"
	"fmt"

	"github.com/pagemarkapp/pagemark-host/internal/domain"
	domainerrors "github.com/pagemarkapp/pagemark-host/internal/errors"
)

// MessageType identifies an inbound message from the rendering surface.
type MessageType string

const (
	// MessageInit carries the initial position after the surface finishes
	// its first layout pass.
	MessageInit MessageType = "init"
	// MessageProgress carries a position update while reading.
	MessageProgress MessageType = "progress"
	// MessageTOC carries the document's chapter list.
	MessageTOC MessageType = "toc"
	// MessageTextSelected reports an active text selection.
	MessageTextSelected MessageType = "text-selected"
	// MessagePreview answers a preview query.
	MessagePreview MessageType = "preview"
	// MessageSearchResults answers a search query.
	MessageSearchResults MessageType = "searchResults"
	// MessageError reports a fault inside the rendering surface.
	MessageError MessageType = "error"
	// MessageDebug carries surface-side diagnostics, log-only.
	MessageDebug MessageType = "debug"
)

// Message is the inbound envelope. The surface sends a flat JSON object with
// a type discriminator; which fields are populated depends on the type.
type Message struct {
	Type MessageType `json:"type"`

	// init / progress
	CurrentPosition int `json:"currentPosition"`
	TotalPositions  int `json:"totalPositions"`

	// init only: the sampling granularity of the location table the
	// positions index into. Zero for fixed-layout documents.
	Generation int `json:"generation,omitempty"`

	// toc
	Chapters []domain.Chapter `json:"chapters,omitempty"`

	// text-selected / preview
	Text     string       `json:"text,omitempty"`
	RangeRef string       `json:"rangeRef,omitempty"`
	Rect     *domain.Rect `json:"rect,omitempty"`

	// searchResults
	Results []domain.SearchResult `json:"results,omitempty"`

	// error / debug
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`

	// Optional request token echoed by query responses. Surfaces that
	// predate tokens omit it; correlation then falls back to oldest-pending.
	Token string `json:"token,omitempty"`
}

// Parse decodes and validates a raw surface payload. It returns a bridge
// parse error for anything malformed; the caller logs and drops the message
// without mutating state.
func Parse(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, domainerrors.BridgeParsef("malformed surface payload: %v", err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *Message) validate() error {
	switch m.Type {
	case MessageInit, MessageProgress:
		if m.CurrentPosition < 0 || m.TotalPositions < 0 {
			return domainerrors.BridgeParsef("%s message with negative position %d/%d", m.Type, m.CurrentPosition, m.TotalPositions)
		}
		if m.Generation < 0 {
			return domainerrors.BridgeParsef("%s message with negative generation %d", m.Type, m.Generation)
		}
	case MessageTOC, MessagePreview, MessageSearchResults, MessageDebug:
		// Empty payloads are legal: a document may have no chapters, a
		// preview may come back blank, a search may match nothing.
	case MessageTextSelected:
		if m.Text == "" {
			return domainerrors.BridgeParse("text-selected message with empty selection")
		}
	case MessageError:
		if m.Message == "" {
			return domainerrors.BridgeParse("error message with no description")
		}
	case "":
		return domainerrors.BridgeParse("surface payload missing type")
	default:
		return domainerrors.BridgeParsef("unknown surface message type %q", m.Type)
	}
	return nil
}

// Selection builds the domain selection carried by a text-selected message.
func (m *Message) Selection() domain.Selection {
	sel := domain.Selection{Text: m.Text, RangeRef: m.RangeRef}
	if m.Rect != nil {
		sel.Rect = *m.Rect
	}
	return sel
}

// String implements fmt.Stringer for log output.
func (m *Message) String() string {
	return fmt.Sprintf("bridge message %s", m.Type)
}
