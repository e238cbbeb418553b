// Package output defines the tagged output record produced by cell
// execution and stored as reference output in notebooks, plus the stream
// coalescing that makes raw output deterministic enough to compare.
package output

// Type discriminates the output record variants.
type Type string

const (
	// TypeStream is incremental stdout/stderr text.
	TypeStream Type = "stream"
	// TypeDisplayData is a rich display payload keyed by MIME type.
	TypeDisplayData Type = "display_data"
	// TypeExecuteResult is the value of the last expression, also keyed
	// by MIME type but carrying an execution count.
	TypeExecuteResult Type = "execute_result"
	// TypeError is a raised exception with name, value and traceback.
	TypeError Type = "error"
)

// Output is one tagged output record. Only the fields matching Type are
// populated; the rest stay zero. Instances are never mutated after
// coalescing, only re-expressed through sanitization at comparison time.
type Output struct {
	Type Type

	// Stream fields.
	Name string
	Text string

	// Display/result fields. Data maps MIME-type keys to a text value,
	// a list of text fragments, or a structured payload.
	Data           map[string]any
	Metadata       map[string]any
	ExecutionCount int

	// Error fields.
	Ename     string
	Evalue    string
	Traceback []string
}

// Stream builds a stream output.
func Stream(name, text string) Output {
	return Output{Type: TypeStream, Name: name, Text: text}
}

// DisplayData builds a display_data output.
func DisplayData(data, metadata map[string]any) Output {
	return Output{Type: TypeDisplayData, Data: data, Metadata: metadata}
}

// ExecuteResult builds an execute_result output.
func ExecuteResult(data, metadata map[string]any, count int) Output {
	return Output{Type: TypeExecuteResult, Data: data, Metadata: metadata, ExecutionCount: count}
}

// Error builds an error output.
func Error(ename, evalue string, traceback []string) Output {
	return Output{Type: TypeError, Ename: ename, Evalue: evalue, Traceback: traceback}
}

// Fields expands an output into a flat field map the comparator can walk.
// Stream outputs are keyed by their stream name so a mismatch report reads
// "stdout" instead of a generic text field.
func (o Output) Fields() map[string]any {
	switch o.Type {
	case TypeStream:
		return map[string]any{
			"output_type": string(o.Type),
			o.Name:        o.Text,
		}
	case TypeExecuteResult:
		return map[string]any{
			"output_type":     string(o.Type),
			"data":            o.Data,
			"metadata":        o.Metadata,
			"execution_count": o.ExecutionCount,
		}
	case TypeDisplayData:
		return map[string]any{
			"output_type": string(o.Type),
			"data":        o.Data,
			"metadata":    o.Metadata,
		}
	case TypeError:
		return map[string]any{
			"output_type": string(o.Type),
			"ename":       o.Ename,
			"evalue":      o.Evalue,
			"traceback":   o.Traceback,
		}
	default:
		return map[string]any{"output_type": string(o.Type)}
	}
}
