package notebook

import "strings"

// MagicPolicy controls how timing and memory cell magics are treated
// when loading a notebook. Their output is wall-clock noise, so cells
// dominated by them are skipped and trailing line magics are dropped.
type MagicPolicy struct {
	SkipTimeit bool
	SkipMemit  bool
}

// Apply rewrites a cell's source under the policy. skip is true when
// the whole cell is governed by a cell magic whose output cannot be
// validated. checkOff is true when the cell's last non-blank line is a
// matching line magic, so whatever the cell prints is timing noise and
// its output must not be compared.
func (p MagicPolicy) Apply(source string) (rewritten string, skip, checkOff bool) {
	trimmed := strings.TrimLeft(source, " \t\n")
	if p.SkipTimeit && (strings.HasPrefix(trimmed, "%%time") || strings.HasPrefix(trimmed, "%%timeit")) {
		return source, true, false
	}
	if p.SkipMemit && strings.HasPrefix(trimmed, "%%memit") {
		return source, true, false
	}

	if last, ok := lastNonBlankLine(source); ok {
		if p.SkipTimeit && strings.HasPrefix(last, "%time") {
			checkOff = true
		}
		if p.SkipMemit && strings.HasPrefix(last, "%memit") {
			checkOff = true
		}
	}

	lines := strings.Split(source, "\n")
	kept := lines[:0]
	for _, line := range lines {
		ls := strings.TrimSpace(line)
		if p.SkipTimeit && strings.HasPrefix(ls, "%timeit") {
			continue
		}
		if p.SkipMemit && strings.HasPrefix(ls, "%memit") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), false, checkOff
}

func lastNonBlankLine(source string) (string, bool) {
	lines := strings.Split(source, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i], true
		}
	}
	return "", false
}
