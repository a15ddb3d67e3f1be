package bridge

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain passthrough", "In a hole in the ground", "In a hole in the ground"},
		{"inline markup", "my <i>precious</i>", "my precious"},
		{"block elements", "<p>first</p><p>second</p>", "first second"},
		{"entities", "Bilbo &amp; Frodo", "Bilbo & Frodo"},
		{"nested", `<div><span class="hl">one</span> two</div>`, "one two"},
		{"whitespace collapsed", "a  \n  b", "a  \n  b"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := plainText(tt.in); got != tt.want {
				t.Errorf("plainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlainTextFallback(t *testing.T) {
	got := plainTextFallback("<b>bold</b> &amp; brave")
	if got != "bold & brave" {
		t.Errorf("plainTextFallback = %q", got)
	}
}
