// Package compare decides whether freshly computed cell outputs agree
// with the reference outputs stored in the notebook, and assembles the
// mismatch trace when they do not.
//
// Both sides pass through the same pipeline: stream coalescing, field
// flattening, sanitization, Unicode NFC normalization, and (for tagged
// cells) structural classification. Comparison is then key-set equality
// followed by per-key pairwise text equality.
package compare

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/unicode/norm"

	"github.com/ouseful-PR/nbval/internal/classify"
	"github.com/ouseful-PR/nbval/internal/output"
	"github.com/ouseful-PR/nbval/internal/report"
	"github.com/ouseful-PR/nbval/internal/sanitize"
)

// Options configures one cell comparison.
type Options struct {
	// SkipKeys are flattened field keys excluded from comparison. When
	// nil, DefaultSkipKeys(RicherDiff) applies.
	SkipKeys map[string]bool
	// Tags are the cell's tags; they select structural classifiers.
	Tags []string
	// Sanitizer, when set, is applied to every textual value on both
	// sides before comparison.
	Sanitizer *sanitize.Pipeline
	// RicherDiff keeps image payloads in the comparison and adds a
	// full unified diff section to mismatch reports.
	RicherDiff bool
}

// DefaultSkipKeys returns the flattened field keys that are never
// compared: bookkeeping fields, tracebacks, and transient MIME payloads.
// Image payloads are skipped too unless a richer diff was requested.
func DefaultSkipKeys(richerDiff bool) map[string]bool {
	skip := map[string]bool{
		"metadata":        true,
		"traceback":       true,
		"prompt_number":   true,
		"output_type":     true,
		"name":            true,
		"execution_count": true,
		// Widget model ids are random per run.
		"application/vnd.jupyter.widget-view+json": true,
	}
	if !richerDiff {
		skip["image/png"] = true
		skip["image/jpeg"] = true
	}
	return skip
}

// Result is the outcome of one cell comparison.
type Result struct {
	Equal bool
	// Trace holds the mismatch diagnostics; empty when Equal.
	Trace report.Trace
}

// entry is one comparable value under a flattened key.
type entry struct {
	kind classify.Kind
	text string
}

// Outputs compares freshly computed outputs against the notebook's
// reference outputs.
func Outputs(fresh, ref []output.Output, opts Options) Result {
	skip := opts.SkipKeys
	if skip == nil {
		skip = DefaultSkipKeys(opts.RicherDiff)
	}
	f := flattener{
		skip:        skip,
		sanitizer:   opts.Sanitizer,
		classifiers: classify.ForTags(opts.Tags),
		lineCount:   classify.HasLineCount(opts.Tags),
	}

	freshFields := f.flatten(output.Coalesce(fresh))
	refFields := f.flatten(output.Coalesce(ref))

	var trace report.Trace
	refKeys := keySet(refFields)
	freshKeys := keySet(freshFields)

	if missing := diffKeys(refKeys, freshKeys); len(missing) > 0 {
		trace.Add(report.ToneFail,
			fmt.Sprintf("Missing output fields from running code: %s", renderKeySet(missing)))
		return Result{Equal: false, Trace: trace}
	}
	if unexpected := diffKeys(freshKeys, refKeys); len(unexpected) > 0 {
		trace.Add(report.ToneFail,
			fmt.Sprintf("Unexpected output fields from running code: %s", renderKeySet(unexpected)))
		return Result{Equal: false, Trace: trace}
	}

	for _, key := range sortedKeys(refKeys) {
		refEntries := refFields[key]
		freshEntries := freshFields[key]
		if len(refEntries) != len(freshEntries) {
			formatCountMismatch(&trace, key, refEntries, freshEntries)
			return Result{Equal: false, Trace: trace}
		}
		for i := range refEntries {
			if refEntries[i].text != freshEntries[i].text {
				formatMismatch(&trace, key, refEntries[i], freshEntries[i], opts.RicherDiff)
				return Result{Equal: false, Trace: trace}
			}
		}
	}
	return Result{Equal: true}
}

// flattener expands coalesced outputs into keyed comparison entries.
type flattener struct {
	skip        map[string]bool
	sanitizer   *sanitize.Pipeline
	classifiers []classify.Classifier
	lineCount   bool
}

func (f flattener) flatten(outs []output.Output) map[string][]entry {
	fields := make(map[string][]entry)
	for _, out := range outs {
		for key, value := range out.Fields() {
			if f.skip[key] {
				continue
			}
			if key == "data" {
				f.flattenData(fields, out.Data)
				continue
			}
			text := f.normalize(canonicalText(value))
			if f.lineCount && out.Type == output.TypeStream && key == "stdout" {
				s := classify.SummarizeLineCount(key, text)
				fields[s.Key] = append(fields[s.Key], entry{kind: s.Kind, text: s.Text})
				continue
			}
			fields[key] = append(fields[key], entry{kind: classify.KindDefault, text: text})
		}
	}
	return fields
}

// flattenData expands a MIME data bundle. When the cell carries
// classifier tags, structural summaries replace the default per-key
// flattening entirely: a tag whose classifier does not apply to this
// value still suppresses the raw payload from comparison.
func (f flattener) flattenData(fields map[string][]entry, data map[string]any) {
	if len(f.classifiers) > 0 {
		sanitized := f.sanitizeData(data)
		for _, c := range f.classifiers {
			s, ok := c.Summarize(sanitized)
			if !ok || s.Omit {
				continue
			}
			fields[s.Key] = append(fields[s.Key], entry{kind: s.Kind, text: s.Text})
		}
		return
	}
	for key, value := range data {
		if f.skip[key] {
			continue
		}
		text := f.normalize(canonicalText(value))
		fields[key] = append(fields[key], entry{kind: classify.KindDefault, text: text})
	}
}

// sanitizeData re-expresses the textual values of a bundle through the
// sanitizer and NFC normalization, so classifiers see the same text the
// default flattening path compares.
func (f flattener) sanitizeData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		if text, ok := classify.TextValue(value); ok {
			out[key] = f.normalize(text)
			continue
		}
		out[key] = value
	}
	return out
}

func (f flattener) normalize(s string) string {
	if f.sanitizer != nil {
		s = f.sanitizer.Sanitize(s)
	}
	return norm.NFC.String(s)
}

// canonicalText renders a flattened value as comparable text. Textual
// payloads (including fragment lists) pass through; structured payloads
// are rendered as JSON with deterministic key order.
func canonicalText(v any) string {
	if text, ok := classify.TextValue(v); ok {
		return text
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

func keySet(fields map[string][]entry) map[string]bool {
	set := make(map[string]bool, len(fields))
	for key := range fields {
		set[key] = true
	}
	return set
}

func diffKeys(a, b map[string]bool) []string {
	var out []string
	for key := range a {
		if !b[key] {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// renderKeySet formats a key list the way the stored reports always
// have, as a set literal of quoted keys.
func renderKeySet(keys []string) string {
	quoted := make([]string, len(keys))
	for i, key := range keys {
		quoted[i] = "'" + key + "'"
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}

func formatCountMismatch(trace *report.Trace, key string, ref, fresh []entry) {
	trace.Add(report.ToneInfo, fmt.Sprintf("dissimilar number of outputs for key %q", key))
	trace.Add(report.ToneFail, "<<<<<<<<<<<< Reference outputs from ipynb file:")
	for _, e := range ref {
		trace.AddPlain(report.Indent(sanitize.TrimBase64(e.text)))
	}
	trace.Add(report.ToneFail, "============ disagree with newly computed (test) outputs:")
	for _, e := range fresh {
		trace.AddPlain(report.Indent(sanitize.TrimBase64(e.text)))
	}
	trace.Add(report.ToneFail, ">>>>>>>>>>>>")
}

func formatMismatch(trace *report.Trace, key string, ref, fresh entry, richerDiff bool) {
	header := fmt.Sprintf(" mismatch '%s'", key)
	if ref.kind != classify.KindDefault {
		header = fmt.Sprintf(" mismatch '%s' (%s)", key, ref.kind)
	}
	trace.Add(report.ToneInfo, header)
	trace.Add(report.ToneFail, "  <<<<<<<<<<<< Reference output from ipynb file:")
	trace.AddPlain(report.Indent(sanitize.TrimBase64(ref.text)))
	trace.Add(report.ToneFail, "============ disagrees with newly computed (test) output:")
	trace.AddPlain(report.Indent(sanitize.TrimBase64(fresh.text)))
	trace.Add(report.ToneFail, ">>>>>>>>>>>>")
	if richerDiff {
		if diff := cmp.Diff(ref.text, fresh.text); diff != "" {
			trace.AddPlain("  full diff (-reference +computed):")
			trace.AddPlain(report.Indent(strings.TrimRight(diff, "\n")))
		}
	}
}
