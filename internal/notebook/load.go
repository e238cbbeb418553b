package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ouseful-PR/nbval/internal/output"
)

// multiString decodes the notebook convention of storing text either as
// one string or as a list of line fragments.
type multiString string

func (m *multiString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*m = multiString(strings.Join(parts, ""))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = multiString(s)
	return nil
}

type rawNotebook struct {
	Cells    []rawCell `json:"cells"`
	Metadata struct {
		Kernelspec struct {
			Name string `json:"name"`
		} `json:"kernelspec"`
	} `json:"metadata"`
	NBFormat int `json:"nbformat"`
}

type rawCell struct {
	CellType string      `json:"cell_type"`
	Source   multiString `json:"source"`
	Metadata struct {
		Tags []string `json:"tags"`
	} `json:"metadata"`
	ExecutionCount *int        `json:"execution_count"`
	Outputs        []rawOutput `json:"outputs"`
}

type rawOutput struct {
	OutputType     string         `json:"output_type"`
	Name           string         `json:"name"`
	Text           multiString    `json:"text"`
	Data           map[string]any `json:"data"`
	Metadata       map[string]any `json:"metadata"`
	ExecutionCount *int           `json:"execution_count"`
	Ename          string         `json:"ename"`
	Evalue         string         `json:"evalue"`
	Traceback      []string       `json:"traceback"`
}

// Load reads and parses a notebook file.
func Load(path string, policy MagicPolicy) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read notebook: %w", err)
	}
	nb, err := Parse(data, policy)
	if err != nil {
		return nil, fmt.Errorf("parse notebook %s: %w", path, err)
	}
	nb.Path = path
	return nb, nil
}

// Parse decodes nbformat 4 notebook JSON into the validation model.
// Only code cells are kept; markdown and raw cells carry nothing to
// execute or compare.
func Parse(data []byte, policy MagicPolicy) (*Notebook, error) {
	var raw rawNotebook
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.NBFormat != 4 {
		return nil, fmt.Errorf("unsupported notebook format %d, need 4", raw.NBFormat)
	}

	nb := &Notebook{KernelName: raw.Metadata.Kernelspec.Name}
	for _, rc := range raw.Cells {
		if rc.CellType != "code" {
			continue
		}
		cell := Cell{
			Index: len(nb.Cells),
			Tags:  rc.Metadata.Tags,
		}
		if rc.ExecutionCount != nil {
			cell.ExecutionCount = *rc.ExecutionCount
		}
		source, skipMagic, checkOff := policy.Apply(string(rc.Source))
		cell.Source = source
		cell.Options = ResolveOptions(source, rc.Metadata.Tags)
		if skipMagic {
			cell.Options.Skip = true
		}
		if checkOff {
			cell.Options.SetCheck(false)
		}
		for _, ro := range rc.Outputs {
			out, err := decodeOutput(ro)
			if err != nil {
				return nil, fmt.Errorf("cell %d: %w", cell.Index, err)
			}
			cell.Outputs = append(cell.Outputs, out)
		}
		nb.Cells = append(nb.Cells, cell)
	}
	return nb, nil
}

func decodeOutput(ro rawOutput) (output.Output, error) {
	switch output.Type(ro.OutputType) {
	case output.TypeStream:
		return output.Stream(ro.Name, string(ro.Text)), nil
	case output.TypeDisplayData:
		return output.DisplayData(ro.Data, ro.Metadata), nil
	case output.TypeExecuteResult:
		count := 0
		if ro.ExecutionCount != nil {
			count = *ro.ExecutionCount
		}
		return output.ExecuteResult(ro.Data, ro.Metadata, count), nil
	case output.TypeError:
		return output.Error(ro.Ename, ro.Evalue, ro.Traceback), nil
	default:
		return output.Output{}, fmt.Errorf("unknown output type %q", ro.OutputType)
	}
}
