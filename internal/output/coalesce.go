package output

import "regexp"

var (
	// backspacePat matches any non-newline character directly followed by
	// a backspace control character. Applied to fixpoint so runs of
	// backspaces unwind correctly.
	backspacePat = regexp.MustCompile("[^\n]\x08")

	// carriageReturnPat matches everything from line start through the
	// last carriage return that is followed by a non-newline character.
	// The survivor after the final \r is captured so the replacement can
	// keep it: only text after the last overwrite remains, simulating
	// terminal semantics. A \r\n pair is left alone.
	carriageReturnPat = regexp.MustCompile(`(?m)^.*\r([^\n])`)
)

// Coalesce merges all stream outputs sharing a name into a single block
// hoisted to the position of the name's first occurrence, then collapses
// backspace and carriage-return control sequences inside each block.
// Non-stream outputs pass through unchanged and keep their relative
// order. Coalesce is idempotent: applying it to its own result returns
// an equal sequence.
func Coalesce(outputs []Output) []Output {
	if len(outputs) == 0 {
		return outputs
	}

	merged := make([]Output, 0, len(outputs))
	blocks := make(map[string]int) // stream name -> index in merged
	for _, out := range outputs {
		if out.Type != TypeStream {
			merged = append(merged, out)
			continue
		}
		if i, ok := blocks[out.Name]; ok {
			merged[i].Text += out.Text
			continue
		}
		blocks[out.Name] = len(merged)
		merged = append(merged, out)
	}

	for _, i := range blocks {
		merged[i].Text = collapseControls(merged[i].Text)
	}
	return merged
}

// collapseControls removes backspace effects to fixpoint, then collapses
// carriage-return overwrites.
func collapseControls(text string) string {
	for {
		shrunk := backspacePat.ReplaceAllString(text, "")
		if len(shrunk) == len(text) {
			break
		}
		text = shrunk
	}
	return carriageReturnPat.ReplaceAllString(text, "$1")
}
