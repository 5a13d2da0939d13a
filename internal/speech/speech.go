// Package speech renders a small SSML subset for voice responses, degrading
// gracefully to plain text when the markup would be too long. All text and
// attribute values are XML-escaped; the rendered markup is not parsed back
// or otherwise validated.
// Grounded in the teacher's preference for escaping via stdlib
// (encoding/xml) rather than hand-rolled string replacement wherever the
// corpus faces similar text-templating needs.
package speech

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// MaxSSMLLength is the cap most voice platforms enforce on an <speak> body;
// markup exceeding it is dropped in favor of speech_text alone.
const MaxSSMLLength = 500

// Segment is one piece of an SSML document: plain text, or a marked-up span.
type Segment struct {
	Text     string
	Pause    bool          // true for a standalone <break>
	PauseFor string        // e.g. "300ms", only used when Pause is true
	Emphasis string        // "", "strong", "moderate", "reduced"
	Rate     string        // prosody rate, e.g. "slow", "medium", "fast"
}

// Render assembles segs into a <speak> document, escaping all text content.
// If the assembled document exceeds MaxSSMLLength, Render returns ("", false)
// so the caller serves speech_text only.
func Render(segs []Segment) (string, bool) {
	var b strings.Builder
	b.WriteString("<speak>")
	for _, s := range segs {
		if s.Pause {
			pause := s.PauseFor
			if pause == "" {
				pause = "300ms"
			}
			fmt.Fprintf(&b, `<break time="%s"/>`, escapeAttr(pause))
			continue
		}
		open, close := wrapTags(s)
		b.WriteString(open)
		xml.EscapeText(&b, []byte(s.Text))
		b.WriteString(close)
	}
	b.WriteString("</speak>")

	out := b.String()
	if len(out) > MaxSSMLLength {
		return "", false
	}
	return out, true
}

func wrapTags(s Segment) (string, string) {
	open, close := "", ""
	if s.Rate != "" {
		open = fmt.Sprintf(`<prosody rate="%s">`, escapeAttr(s.Rate)) + open
		close = close + "</prosody>"
	}
	if s.Emphasis != "" {
		open = fmt.Sprintf(`<emphasis level="%s">`, escapeAttr(s.Emphasis)) + open
		close = close + "</emphasis>"
	}
	return open, close
}

func escapeAttr(v string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(v))
	return b.String()
}

// Plain renders segs as plain speech_text, ignoring all markup — the
// degrade-gracefully path every handler can fall back to unconditionally.
func Plain(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Pause {
			b.WriteString(" ")
			continue
		}
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(b.String())
}
