package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalesce_MergesSameNameStreams(t *testing.T) {
	outs := []Output{
		Stream("stdout", "a"),
		Stream("stdout", "b"),
		Stream("stdout", "c"),
	}

	got := Coalesce(outs)

	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0].Text, "text concatenates in arrival order")
}

func TestCoalesce_OneBlockPerStreamName(t *testing.T) {
	outs := []Output{
		Stream("stdout", "out1"),
		Stream("stderr", "err1"),
		Stream("stdout", "out2"),
		Stream("stderr", "err2"),
	}

	got := Coalesce(outs)

	require.Len(t, got, 2)
	assert.Equal(t, "stdout", got[0].Name)
	assert.Equal(t, "out1out2", got[0].Text)
	assert.Equal(t, "stderr", got[1].Name)
	assert.Equal(t, "err1err2", got[1].Text)
}

func TestCoalesce_HoistsStreamToFirstOccurrence(t *testing.T) {
	result := ExecuteResult(map[string]any{"text/plain": "1"}, nil, 1)
	outs := []Output{
		Stream("stdout", "before "),
		result,
		Stream("stdout", "after"),
	}

	got := Coalesce(outs)

	require.Len(t, got, 2)
	assert.Equal(t, TypeStream, got[0].Type)
	assert.Equal(t, "before after", got[0].Text)
	assert.Equal(t, TypeExecuteResult, got[1].Type, "non-stream outputs keep relative position")
}

func TestCoalesce_Backspace(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"single backspace", "ab\bc", "ac"},
		{"run of backspaces", "abc\b\b\bx", "x"},
		{"backspace after newline survives", "a\n\bb", "a\n\bb"},
		{"leading backspace survives", "\bab", "\bab"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Coalesce([]Output{Stream("stdout", tc.in)})
			require.Len(t, got, 1)
			assert.Equal(t, tc.want, got[0].Text)
		})
	}
}

func TestCoalesce_CarriageReturn(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"overwrite", "abc\rdef", "def"},
		{"repeated overwrite", "10%\r50%\r100%", "100%"},
		{"crlf preserved", "line\r\nnext", "line\r\nnext"},
		{"trailing cr preserved", "abc\r", "abc\r"},
		{"per line", "aa\rb\ncc\rd", "b\nd"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Coalesce([]Output{Stream("stdout", tc.in)})
			require.Len(t, got, 1)
			assert.Equal(t, tc.want, got[0].Text)
		})
	}
}

func TestCoalesce_Idempotent(t *testing.T) {
	outs := []Output{
		Stream("stdout", "progress 10%\rprogress 100%\n"),
		Stream("stderr", "warn\b!"),
		DisplayData(map[string]any{"text/plain": "x"}, nil),
		Stream("stdout", "done\n"),
	}

	once := Coalesce(outs)
	twice := Coalesce(once)

	assert.Equal(t, once, twice)
}

func TestCoalesce_Empty(t *testing.T) {
	assert.Empty(t, Coalesce(nil))
}

func TestFields_StreamKeyedByName(t *testing.T) {
	f := Stream("stderr", "boom").Fields()
	assert.Equal(t, "boom", f["stderr"])
	assert.Equal(t, "stream", f["output_type"])
}
