// Package report carries comparison and failure diagnostics as symbolic
// trace lines. The core never emits raw terminal escape codes; tones are
// resolved to ANSI colors (or stripped) only here, at the presentation
// boundary.
package report

import "strings"

// Tone is a symbolic color token attached to a trace line.
type Tone string

const (
	TonePlain  Tone = ""
	ToneHeader Tone = "header"
	ToneInfo   Tone = "info"
	ToneOK     Tone = "ok"
	ToneWarn   Tone = "warn"
	ToneFail   Tone = "fail"
)

// Line is one human-readable diagnostic line with its tone.
type Line struct {
	Tone Tone
	Text string
}

// Trace is an ordered list of diagnostic lines. It is assembled during a
// comparison or cell failure and discarded once rendered.
type Trace []Line

// Add appends a line with the given tone.
func (t *Trace) Add(tone Tone, text string) {
	*t = append(*t, Line{Tone: tone, Text: text})
}

// AddPlain appends a line with no tone.
func (t *Trace) AddPlain(text string) {
	t.Add(TonePlain, text)
}

// ansi maps tones to escape sequences, mirroring the classic
// notebook-validation palette.
var ansi = map[Tone]string{
	ToneHeader: "\033[95m",
	ToneInfo:   "\033[94m",
	ToneOK:     "\033[92m",
	ToneWarn:   "\033[93m",
	ToneFail:   "\033[91m",
}

const ansiReset = "\033[0m"

// Render joins trace lines into displayable text. With color enabled,
// each toned line is wrapped in its escape sequence and a reset.
func Render(trace Trace, color bool) string {
	var b strings.Builder
	for i, line := range trace {
		if i > 0 {
			b.WriteByte('\n')
		}
		if color && line.Tone != TonePlain {
			b.WriteString(ansi[line.Tone])
			b.WriteString(line.Text)
			b.WriteString(ansiReset)
			continue
		}
		b.WriteString(line.Text)
	}
	return b.String()
}

// Indent prefixes every line of s with two spaces, for nesting raw
// payloads under a diagnostic heading.
func Indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
