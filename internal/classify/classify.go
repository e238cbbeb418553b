// Package classify implements the tag-gated structural output
// classifiers: a closed set of parse-and-summarize variants that reduce a
// rich output value (dataframe, list, set, dict, figure, map repr) to a
// small comparable summary.
//
// A classifier is selected by a cell tag and gated on a MIME key being
// present in the output's data bundle. When its structural parse fails it
// reports "not applicable" rather than raising; the presence of its tag
// still suppresses default flattened comparison.
package classify

import (
	"fmt"
	"strings"

	"github.com/ouseful-PR/nbval/internal/literal"
)

// Kind names a classifier variant in mismatch reports.
type Kind string

const (
	KindDefault        Kind = "default"
	KindDataFrame      Kind = "dataframe"
	KindLineCount      Kind = "linecount"
	KindListLen        Kind = "listlen"
	KindListMembership Kind = "list-membership"
	KindSetMembership  Kind = "set-membership"
	KindDictKeys       Kind = "dictkeys"
	KindFigure         Kind = "figure"
	KindFoliumMap      Kind = "folium-map"
)

// Cell tags recognised by the classifier set.
const (
	TagDataFrame      = "nbval-test-df"
	TagLineCount      = "nbval-test-linecount"
	TagListLen        = "nbval-test-listlen"
	TagListMembership = "nbval-list-membership"
	TagSetMembership  = "nbval-set-membership"
	TagDictKeys       = "nbval-test-dictkeys"
	TagFigure         = "nbval-figure"
	TagFoliumMap      = "folium-map"
)

// Summary is a classifier's comparable reduction of one output value.
type Summary struct {
	Kind Kind
	// Key is the comparison key the summary is recorded under, normally
	// the MIME key the classifier consumed.
	Key string
	// Text is the canonical comparable rendering of the summary.
	Text string
	// Omit marks an applicable classification that contributes no
	// comparison entry (e.g. a figure cell without a size marker).
	Omit bool
}

// Classifier reduces an output data bundle to a Summary. The boolean
// result is false when the classifier is not applicable to this value:
// its MIME key is absent or the payload does not parse structurally.
type Classifier interface {
	Kind() Kind
	Tag() string
	Summarize(data map[string]any) (Summary, bool)
}

// dataClassifiers is the closed variant set in precedence order. The
// order matters only when a cell carries several tags, which the
// contract treats as at most one expected.
var dataClassifiers = []Classifier{
	figureClassifier{},
	dataFrameClassifier{},
	listLenClassifier{},
	listMembershipClassifier{},
	setMembershipClassifier{},
	dictKeysClassifier{},
	foliumClassifier{},
}

// ForTags returns the data classifiers selected by the cell's tags, in
// precedence order.
func ForTags(tags []string) []Classifier {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	var out []Classifier
	for _, c := range dataClassifiers {
		if set[c.Tag()] {
			out = append(out, c)
		}
	}
	return out
}

// HasLineCount reports whether the linecount tag is present. Line
// counting applies to stream text, not to data bundles, so it is gated
// separately from the data classifiers.
func HasLineCount(tags []string) bool {
	for _, t := range tags {
		if t == TagLineCount {
			return true
		}
	}
	return false
}

// SummarizeLineCount reduces stream text to its newline-split line count.
func SummarizeLineCount(key, text string) Summary {
	return Summary{
		Kind: KindLineCount,
		Key:  key,
		Text: fmt.Sprintf("%d", len(strings.Split(text, "\n"))),
	}
}

// TextValue extracts the textual payload of a MIME bundle value. Values
// arrive either as a single string or as a list of text fragments.
func TextValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []string:
		return strings.Join(val, ""), true
	case []any:
		var b strings.Builder
		for _, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return "", false
			}
			b.WriteString(s)
		}
		return b.String(), true
	default:
		return "", false
	}
}

// parseLiteral parses a textual payload as a restricted literal,
// reducing Mongo ObjectId(...) wrappers to their inner literal first,
// matching the reference behavior for driver result reprs.
func parseLiteral(text string) (literal.Value, error) {
	text = strings.ReplaceAll(text, "ObjectId(", "(")
	return literal.Parse(strings.TrimSpace(text))
}

type listLenClassifier struct{}

func (listLenClassifier) Kind() Kind  { return KindListLen }
func (listLenClassifier) Tag() string { return TagListLen }

func (c listLenClassifier) Summarize(data map[string]any) (Summary, bool) {
	text, ok := textPlain(data)
	if !ok {
		return Summary{}, false
	}
	v, err := parseLiteral(text)
	if err != nil {
		return Summary{}, false
	}
	summary := "None"
	if list, isList := v.(literal.List); isList {
		summary = fmt.Sprintf("%d", len(list))
	}
	return Summary{Kind: c.Kind(), Key: plainKey, Text: summary}, true
}

type listMembershipClassifier struct{}

func (listMembershipClassifier) Kind() Kind  { return KindListMembership }
func (listMembershipClassifier) Tag() string { return TagListMembership }

func (c listMembershipClassifier) Summarize(data map[string]any) (Summary, bool) {
	text, ok := textPlain(data)
	if !ok {
		return Summary{}, false
	}
	v, err := parseLiteral(text)
	if err != nil {
		return Summary{}, false
	}
	summary := "None"
	if list, isList := v.(literal.List); isList {
		sorted := make([]literal.Value, len(list))
		copy(sorted, list)
		literal.Sort(sorted)
		summary = literal.Canonical(literal.List(sorted))
	}
	return Summary{Kind: c.Kind(), Key: plainKey, Text: summary}, true
}

type setMembershipClassifier struct{}

func (setMembershipClassifier) Kind() Kind  { return KindSetMembership }
func (setMembershipClassifier) Tag() string { return TagSetMembership }

func (c setMembershipClassifier) Summarize(data map[string]any) (Summary, bool) {
	text, ok := textPlain(data)
	if !ok {
		return Summary{}, false
	}
	v, err := parseLiteral(text)
	if err != nil {
		return Summary{}, false
	}
	summary := "None"
	if set, isSet := v.(literal.Set); isSet {
		summary = literal.Canonical(set)
	}
	return Summary{Kind: c.Kind(), Key: plainKey, Text: summary}, true
}

type dictKeysClassifier struct{}

func (dictKeysClassifier) Kind() Kind  { return KindDictKeys }
func (dictKeysClassifier) Tag() string { return TagDictKeys }

func (c dictKeysClassifier) Summarize(data map[string]any) (Summary, bool) {
	text, ok := textPlain(data)
	if !ok {
		return Summary{}, false
	}
	v, err := parseLiteral(text)
	if err != nil {
		return Summary{}, false
	}
	summary := "None"
	if m, isMap := v.(literal.Map); isMap {
		summary = literal.Canonical(literal.List(m.SortedKeys()))
	}
	return Summary{Kind: c.Kind(), Key: plainKey, Text: summary}, true
}

// figureMarker is the repr prefix emitted for matplotlib figure objects.
const figureMarker = "<Figure size"

type figureClassifier struct{}

func (figureClassifier) Kind() Kind  { return KindFigure }
func (figureClassifier) Tag() string { return TagFigure }

func (c figureClassifier) Summarize(data map[string]any) (Summary, bool) {
	text, ok := textPlain(data)
	if !ok {
		return Summary{}, false
	}
	if !strings.Contains(text, figureMarker) {
		// Applicable, but nothing to compare: the tag suppresses default
		// flattening and the absence of a marker contributes no entry.
		return Summary{Kind: c.Kind(), Key: plainKey, Omit: true}, true
	}
	return Summary{Kind: c.Kind(), Key: plainKey, Text: text}, true
}

// foliumMarker is the repr prefix of an inline folium map object.
const foliumMarker = "<folium.folium.Map"

type foliumClassifier struct{}

func (foliumClassifier) Kind() Kind  { return KindFoliumMap }
func (foliumClassifier) Tag() string { return TagFoliumMap }

func (c foliumClassifier) Summarize(data map[string]any) (Summary, bool) {
	text, ok := textPlain(data)
	if !ok {
		return Summary{}, false
	}
	firstLine, _, _ := strings.Cut(text, "\n")
	rendered := strings.HasPrefix(firstLine, foliumMarker)
	return Summary{Kind: c.Kind(), Key: plainKey, Text: fmt.Sprintf("%t", rendered)}, true
}

// plainKey is the default MIME key most classifiers are gated on.
const plainKey = "text/plain"

func textPlain(data map[string]any) (string, bool) {
	v, ok := data[plainKey]
	if !ok {
		return "", false
	}
	return TextValue(v)
}
