package compare

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouseful-PR/nbval/internal/classify"
	"github.com/ouseful-PR/nbval/internal/output"
	"github.com/ouseful-PR/nbval/internal/report"
	"github.com/ouseful-PR/nbval/internal/sanitize"
)

func plainResult(text string) output.Output {
	return output.ExecuteResult(map[string]any{"text/plain": text}, nil, 1)
}

func traceText(t *testing.T, r Result) string {
	t.Helper()
	return report.Render(r.Trace, false)
}

func TestOutputs_EqualPlainText(t *testing.T) {
	fresh := []output.Output{plainResult("42")}
	ref := []output.Output{plainResult("42")}

	r := Outputs(fresh, ref, Options{})
	assert.True(t, r.Equal)
	assert.Empty(t, r.Trace)
}

func TestOutputs_MismatchPlainText(t *testing.T) {
	r := Outputs([]output.Output{plainResult("43")}, []output.Output{plainResult("42")}, Options{})

	require.False(t, r.Equal)
	text := traceText(t, r)
	assert.Contains(t, text, "mismatch 'text/plain'")
	assert.Contains(t, text, "Reference output from ipynb file:")
	assert.Contains(t, text, "42")
	assert.Contains(t, text, "43")
}

func TestOutputs_MissingField(t *testing.T) {
	// Reference has a text/plain result the fresh run never produced.
	r := Outputs(nil, []output.Output{plainResult("42")}, Options{})

	require.False(t, r.Equal)
	assert.Contains(t, traceText(t, r), "Missing output fields from running code: {'text/plain'}")
}

func TestOutputs_UnexpectedField(t *testing.T) {
	r := Outputs([]output.Output{output.Stream("stdout", "surprise\n")}, nil, Options{})

	require.False(t, r.Equal)
	assert.Contains(t, traceText(t, r), "Unexpected output fields from running code: {'stdout'}")
}

func TestOutputs_DissimilarCount(t *testing.T) {
	fresh := []output.Output{plainResult("1"), plainResult("2")}
	ref := []output.Output{plainResult("1")}

	r := Outputs(fresh, ref, Options{})
	require.False(t, r.Equal)
	text := traceText(t, r)
	assert.Contains(t, text, `dissimilar number of outputs for key "text/plain"`)
	assert.Contains(t, text, "<<<<<<<<<<<< Reference outputs from ipynb file:")
	assert.Contains(t, text, ">>>>>>>>>>>>")
}

func TestDefaultSkipKeys(t *testing.T) {
	skip := DefaultSkipKeys(false)
	for _, key := range []string{
		"metadata", "traceback", "prompt_number", "output_type", "name",
		"execution_count", "application/vnd.jupyter.widget-view+json",
		"image/png", "image/jpeg",
	} {
		assert.True(t, skip[key], key)
	}
	assert.False(t, skip["latex"])
	assert.False(t, skip["application/javascript"])
	assert.False(t, DefaultSkipKeys(true)["image/png"])
}

func TestOutputs_JavascriptPayloadCompared(t *testing.T) {
	fresh := []output.Output{output.DisplayData(map[string]any{"application/javascript": "render(1)"}, nil)}
	ref := []output.Output{output.DisplayData(map[string]any{"application/javascript": "render(2)"}, nil)}

	assert.False(t, Outputs(fresh, ref, Options{}).Equal)
}

func TestOutputs_SkippedKeysNeverCompared(t *testing.T) {
	fresh := []output.Output{output.DisplayData(map[string]any{"image/png": "AAAA"}, nil)}
	ref := []output.Output{output.DisplayData(map[string]any{"image/png": "BBBB"}, nil)}

	assert.True(t, Outputs(fresh, ref, Options{}).Equal)

	// With a richer diff requested the payloads participate again.
	assert.False(t, Outputs(fresh, ref, Options{RicherDiff: true}).Equal)
}

func TestOutputs_StreamsCoalescedBeforeCompare(t *testing.T) {
	// Two fresh chunks against one reference block with the same text.
	fresh := []output.Output{
		output.Stream("stdout", "a"),
		output.Stream("stdout", "b\n"),
	}
	ref := []output.Output{output.Stream("stdout", "ab\n")}

	assert.True(t, Outputs(fresh, ref, Options{}).Equal)
}

func TestOutputs_SanitizerAppliesToBothSides(t *testing.T) {
	p := sanitize.NewPipeline()
	p.Append(sanitize.CoreRules()...)

	fresh := []output.Output{plainResult("<seaborn.axisgrid.FacetGrid at 0x7f01>")}
	ref := []output.Output{plainResult("<seaborn.axisgrid.FacetGrid at 0x99ee>")}

	assert.False(t, Outputs(fresh, ref, Options{}).Equal, "unsanitized addresses differ")
	assert.True(t, Outputs(fresh, ref, Options{Sanitizer: p}).Equal)
}

func TestOutputs_UnicodeNormalized(t *testing.T) {
	precomposed := "caf\u00e9"
	combining := "cafe\u0301"
	require.NotEqual(t, precomposed, combining, "distinct byte sequences")

	assert.True(t, Outputs(
		[]output.Output{plainResult(precomposed)},
		[]output.Output{plainResult(combining)},
		Options{},
	).Equal)
}

func TestOutputs_ClassifierInputsNormalized(t *testing.T) {
	// NFC applies to classifier inputs even with no sanitizer configured.
	precomposed := "['caf\u00e9']"
	combining := "['cafe\u0301']"
	require.NotEqual(t, precomposed, combining, "distinct byte sequences")

	assert.True(t, Outputs(
		[]output.Output{plainResult(precomposed)},
		[]output.Output{plainResult(combining)},
		Options{Tags: []string{classify.TagListMembership}},
	).Equal)
}

func TestOutputs_ListMembershipTag(t *testing.T) {
	fresh := []output.Output{plainResult("[3, 1, 2]")}
	ref := []output.Output{plainResult("[1, 2, 3]")}

	assert.False(t, Outputs(fresh, ref, Options{}).Equal, "default comparison is order-sensitive")
	assert.True(t, Outputs(fresh, ref, Options{Tags: []string{classify.TagListMembership}}).Equal)
}

func TestOutputs_ListLenTag(t *testing.T) {
	fresh := []output.Output{plainResult("[9, 9, 9]")}
	ref := []output.Output{plainResult("[1, 2, 3]")}

	assert.True(t, Outputs(fresh, ref, Options{Tags: []string{classify.TagListLen}}).Equal)

	r := Outputs([]output.Output{plainResult("[9, 9]")}, ref,
		Options{Tags: []string{classify.TagListLen}})
	require.False(t, r.Equal)
	assert.Contains(t, traceText(t, r), "mismatch 'text/plain' (listlen)")
}

func TestOutputs_DictKeysTag(t *testing.T) {
	fresh := []output.Output{plainResult("{'b': 99, 'a': 0}")}
	ref := []output.Output{plainResult("{'a': 1, 'b': 2}")}

	assert.True(t, Outputs(fresh, ref, Options{Tags: []string{classify.TagDictKeys}}).Equal)
}

func TestOutputs_TagSuppressesRawPayload(t *testing.T) {
	// Unparseable reprs on both sides: the classifier does not apply, but
	// the tag still keeps the raw payload out of the comparison.
	fresh := []output.Output{plainResult("<Thing at 0x1>")}
	ref := []output.Output{plainResult("<Thing at 0x2>")}

	assert.True(t, Outputs(fresh, ref, Options{Tags: []string{classify.TagListLen}}).Equal)
}

const dfTable = `<table><thead><tr><th></th><th>a</th><th>b</th></tr></thead>
<tbody><tr><td>1</td><td>4</td></tr><tr><td>2</td><td>5</td></tr><tr><td>3</td><td>6</td></tr></tbody></table>`

const dfTableWide = `<table><thead><tr><th></th><th>a</th><th>b</th><th>c</th></tr></thead>
<tbody><tr><td>1</td><td>4</td><td>7</td></tr><tr><td>2</td><td>5</td><td>8</td></tr><tr><td>3</td><td>6</td><td>9</td></tr></tbody></table>`

func TestOutputs_DataFrameTag(t *testing.T) {
	mk := func(html string) []output.Output {
		return []output.Output{output.ExecuteResult(map[string]any{
			"text/html":  html,
			"text/plain": "   a  b\n0  1  4",
		}, nil, 1)}
	}

	// Same shape and columns, different cell markup noise elsewhere.
	assert.True(t, Outputs(mk(dfTable), mk(dfTable),
		Options{Tags: []string{classify.TagDataFrame}}).Equal)

	r := Outputs(mk(dfTableWide), mk(dfTable), Options{Tags: []string{classify.TagDataFrame}})
	require.False(t, r.Equal)
	assert.Contains(t, traceText(t, r), "((3, 2), ['a', 'b'])")
	assert.Contains(t, traceText(t, r), "((3, 3), ['a', 'b', 'c'])")
}

func TestOutputs_DataFrameMissingHTMLSide(t *testing.T) {
	fresh := []output.Output{output.ExecuteResult(map[string]any{"text/plain": "oops"}, nil, 1)}
	ref := []output.Output{output.ExecuteResult(map[string]any{"text/html": dfTable}, nil, 1)}

	r := Outputs(fresh, ref, Options{Tags: []string{classify.TagDataFrame}})
	require.False(t, r.Equal)
	assert.Contains(t, traceText(t, r), "Missing output fields from running code: {'text/html'}")
}

func TestOutputs_LineCountTag(t *testing.T) {
	fresh := []output.Output{output.Stream("stdout", "x\ny\nz")}
	ref := []output.Output{output.Stream("stdout", "a\nb\nc")}

	assert.False(t, Outputs(fresh, ref, Options{}).Equal)
	assert.True(t, Outputs(fresh, ref, Options{Tags: []string{classify.TagLineCount}}).Equal)
}

func TestOutputs_ErrorOutputsCompared(t *testing.T) {
	fresh := []output.Output{output.Error("ValueError", "bad input", []string{"tb line fresh"})}
	ref := []output.Output{output.Error("ValueError", "bad input", []string{"tb line ref"})}

	// Tracebacks are skipped; name and value must agree.
	assert.True(t, Outputs(fresh, ref, Options{}).Equal)

	fresh[0].Evalue = "other"
	assert.False(t, Outputs(fresh, ref, Options{}).Equal)
}

func TestOutputs_Base64TrimmedInReportOnly(t *testing.T) {
	long := strings.Repeat("QUJDREVG", 32)
	fresh := []output.Output{output.DisplayData(map[string]any{"image/png": long + "AAAA"}, nil)}
	ref := []output.Output{output.DisplayData(map[string]any{"image/png": long + "BBBB"}, nil)}

	r := Outputs(fresh, ref, Options{RicherDiff: true})
	require.False(t, r.Equal)
	assert.Contains(t, traceText(t, r), "<snip base64, md5=")
}
