package classify

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/ouseful-PR/nbval/internal/literal"
)

// dataFrameClassifier reduces a dataframe's HTML table repr to its shape
// and column names, so comparisons survive reformatting and value noise
// while still catching structural drift.
type dataFrameClassifier struct{}

func (dataFrameClassifier) Kind() Kind  { return KindDataFrame }
func (dataFrameClassifier) Tag() string { return TagDataFrame }

// htmlKey is the MIME key carrying the rendered table.
const htmlKey = "text/html"

func (c dataFrameClassifier) Summarize(data map[string]any) (Summary, bool) {
	raw, ok := data[htmlKey]
	if !ok {
		return Summary{}, false
	}
	text, ok := TextValue(raw)
	if !ok {
		return Summary{}, false
	}
	rows, cols, ok := tableShape(text)
	if !ok {
		return Summary{}, false
	}
	names := make([]literal.Value, len(cols))
	for i, col := range cols {
		names[i] = literal.Str(col)
	}
	summary := fmt.Sprintf("((%d, %d), %s)", rows, len(cols), literal.Canonical(literal.List(names)))
	return Summary{Kind: c.Kind(), Key: htmlKey, Text: summary}, true
}

// tableShape extracts the body row count and the non-empty header cell
// texts from the first <table> in the fragment. The leading empty <th>
// in a dataframe header row is the index column and is not counted.
func tableShape(fragment string) (rows int, cols []string, ok bool) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return 0, nil, false
	}
	table := findElement(doc, "table")
	if table == nil {
		return 0, nil, false
	}
	if thead := findElement(table, "thead"); thead != nil {
		walkElements(thead, "th", func(th *html.Node) {
			if text := strings.TrimSpace(nodeText(th)); text != "" {
				cols = append(cols, text)
			}
		})
	}
	if tbody := findElement(table, "tbody"); tbody != nil {
		walkElements(tbody, "tr", func(*html.Node) { rows++ })
	}
	return rows, cols, true
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

func walkElements(n *html.Node, name string, fn func(*html.Node)) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == name {
			fn(child)
		}
		walkElements(child, name, fn)
	}
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}
