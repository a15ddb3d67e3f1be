package bridge

import (
	"github.com/pagemarkapp/pagemark-host/internal/domain"
)

// CommandAction identifies an outbound command to the rendering surface.
type CommandAction string

const (
	// ActionNavigate jumps the surface to a target position or range.
	ActionNavigate CommandAction = "navigate"
	// ActionApplySettings changes theme, font size and line height.
	ActionApplySettings CommandAction = "applySettings"
	// ActionSearch runs a full-document search.
	ActionSearch CommandAction = "search"
	// ActionNextMatch moves to the next search match.
	ActionNextMatch CommandAction = "nextMatch"
	// ActionPrevMatch moves to the previous search match.
	ActionPrevMatch CommandAction = "prevMatch"
	// ActionRequestPreview asks for a short excerpt at the current position.
	ActionRequestPreview CommandAction = "requestPreview"
	// ActionApplyHighlight paints a highlight over a range.
	ActionApplyHighlight CommandAction = "applyHighlight"
	// ActionClearHighlight removes the highlight painted over a range.
	ActionClearHighlight CommandAction = "clearHighlight"
)

// Command is the outbound envelope. Delivery is fire-and-forget: the surface
// never acknowledges a command and the host never blocks on its effect.
type Command struct {
	Action CommandAction `json:"action"`

	// navigate / applyHighlight / clearHighlight
	Target   string `json:"target,omitempty"`
	RangeRef string `json:"rangeRef,omitempty"`
	Color    string `json:"color,omitempty"`

	// applySettings
	Theme       string  `json:"theme,omitempty"`
	FontSizePct int     `json:"fontSizePct,omitempty"`
	LineHeight  float64 `json:"lineHeight,omitempty"`

	// search
	Query string `json:"query,omitempty"`

	// requestPreview / search correlation token, echoed in the response
	// by surfaces that support it.
	Token string `json:"token,omitempty"`
}

// Surface is the outbound half of the protocol: whatever hosts the rendering
// surface (a webview shim, a test fake) implements Send. Send failures mean
// the command was never delivered; they never mean a surface-side fault.
type Surface interface {
	Send(cmd Command) error
}

// NavigateCommand builds a jump to a chapter target or stored position.
func NavigateCommand(target string) Command {
	return Command{Action: ActionNavigate, Target: target}
}

// SettingsCommand builds a theme/font/line-height change.
func SettingsCommand(s domain.ReaderSettings) Command {
	return Command{
		Action:      ActionApplySettings,
		Theme:       string(s.Theme),
		FontSizePct: s.FontSizePct,
		LineHeight:  s.LineHeight,
	}
}

// SearchCommand builds a full-document search.
func SearchCommand(query, token string) Command {
	return Command{Action: ActionSearch, Query: query, Token: token}
}

// PreviewCommand builds a preview request.
func PreviewCommand(token string) Command {
	return Command{Action: ActionRequestPreview, Token: token}
}

// HighlightCommand builds a visual highlight application.
func HighlightCommand(rangeRef, color string) Command {
	return Command{Action: ActionApplyHighlight, RangeRef: rangeRef, Color: color}
}

// ClearHighlightCommand builds a visual highlight removal.
func ClearHighlightCommand(rangeRef string) Command {
	return Command{Action: ActionClearHighlight, RangeRef: rangeRef}
}
