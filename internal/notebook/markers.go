package notebook

import (
	"log/slog"
	"strings"
)

// option fields a marker can set.
const (
	fieldCheck          = "check"
	fieldCheckException = "check_exception"
	fieldSkip           = "skip"
)

type effect struct {
	field string
	value bool
}

// commentMarkers maps the recognised source-comment markers to their
// effect. PYTEST_VALIDATE_IGNORE_OUTPUT is the pre-rename spelling of
// NBVAL_IGNORE_OUTPUT and is kept for old notebooks.
var commentMarkers = map[string]effect{
	"PYTEST_VALIDATE_IGNORE_OUTPUT": {fieldCheck, false},
	"NBVAL_IGNORE_OUTPUT":           {fieldCheck, false},
	"NBVAL_VARIABLE_OUTPUT":         {fieldCheck, false},
	"NBVAL_CHECK_OUTPUT":            {fieldCheck, true},
	"NBVAL_RAISES_EXCEPTION":        {fieldCheckException, true},
	"NBVAL_SKIP":                    {fieldSkip, true},
}

// metadataTags maps the recognised cell metadata tags to their effect.
// raises-exception is the notebook-standard spelling alongside the
// nbval-prefixed one.
var metadataTags = map[string]effect{
	"nbval-ignore-output":    {fieldCheck, false},
	"nbval-variable-output":  {fieldCheck, false},
	"nbval-check-output":     {fieldCheck, true},
	"nbval-raises-exception": {fieldCheckException, true},
	"raises-exception":       {fieldCheckException, true},
	"nbval-skip":             {fieldSkip, true},
}

// ResolveOptions computes a cell's validation options from its metadata
// tags and source comments. Comment markers are applied after tags, so
// a comment wins a conflict; repeated markers for the same option keep
// the last one seen. Either way the conflict is logged, not fatal.
func ResolveOptions(source string, tags []string) Options {
	var opts Options
	seen := map[string]bool{}

	apply := func(origin, name string, e effect) {
		if prev, dup := currentValue(opts, e.field); seen[e.field] && dup && prev != e.value {
			slog.Warn("conflicting cell markers, last one wins",
				"origin", origin, "marker", name, "option", e.field)
		}
		seen[e.field] = true
		switch e.field {
		case fieldCheck:
			opts.SetCheck(e.value)
		case fieldCheckException:
			opts.CheckException = e.value
		case fieldSkip:
			opts.Skip = e.value
		}
	}

	for _, tag := range tags {
		if e, ok := metadataTags[tag]; ok {
			apply("metadata tag", tag, e)
		}
	}
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		comment := strings.TrimSpace(strings.TrimLeft(line, "#"))
		if e, ok := commentMarkers[comment]; ok {
			apply("comment", comment, e)
		}
	}
	return opts
}

func currentValue(opts Options, field string) (value, known bool) {
	switch field {
	case fieldCheck:
		return opts.check, opts.checkSet
	case fieldCheckException:
		return opts.CheckException, true
	case fieldSkip:
		return opts.Skip, true
	}
	return false, false
}
