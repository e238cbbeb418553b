// Package sanitize normalizes non-deterministic substrings in textual
// output before comparison: object-repr addresses, timing reports, and
// similar noise that differs run to run.
package sanitize

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
)

// Rule is one ordered pattern/replacement pair. Replacement text is
// literal; later rules see the output of earlier ones.
type Rule struct {
	Pattern *regexp.Regexp
	Replace string
}

// Pipeline is an append-only ordered rule log, scoped to one notebook.
// Assembly order matters for overlapping patterns: core defaults first,
// then timing rules, then any user-supplied rule file.
type Pipeline struct {
	rules []Rule
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Append adds rules to the end of the log.
func (p *Pipeline) Append(rules ...Rule) {
	p.rules = append(p.rules, rules...)
}

// Rules returns the registered rules in application order.
func (p *Pipeline) Rules() []Rule {
	return p.rules
}

// Len returns the number of registered rules.
func (p *Pipeline) Len() int {
	return len(p.rules)
}

// Sanitize applies every registered rule in registration order.
func (p *Pipeline) Sanitize(s string) string {
	for _, r := range p.rules {
		s = r.Pattern.ReplaceAllLiteralString(s, r.Replace)
	}
	return s
}

// ruleFilePat extracts regex/replace pairs from the rule file format:
// repeated blocks of a "regex:" line directly followed by a "replace:"
// line. Anything else in the file is ignored.
var ruleFilePat = regexp.MustCompile(`(?m)^regex: (.*)$\n^replace: (.*)$`)

// ParseRules reads rules from rule-file text. Blocks whose pattern does
// not compile are skipped with a warning rather than failing the whole
// file; a stale rule should not block a validation run.
func ParseRules(text string) []Rule {
	var rules []Rule
	for _, m := range ruleFilePat.FindAllStringSubmatch(text, -1) {
		pat, err := regexp.Compile(m[1])
		if err != nil {
			slog.Warn("skipping unparseable sanitize rule", "pattern", m[1], "error", err)
			continue
		}
		rules = append(rules, Rule{Pattern: pat, Replace: m[2]})
	}
	return rules
}

// LoadRuleFile reads and parses a user-supplied rule file.
func LoadRuleFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sanitize rule file: %w", err)
	}
	return ParseRules(string(data)), nil
}

// mustRule compiles a built-in rule; built-ins are constants, so a
// compile failure is a programming error.
func mustRule(pattern, replace string) Rule {
	return Rule{Pattern: regexp.MustCompile(pattern), Replace: replace}
}

// CoreRules returns the built-in defaults: object reprs that embed heap
// addresses or driver-generated ids, plus benchmark and memory report
// lines.
func CoreRules() []Rule {
	return []Rule{
		mustRule(`<graphviz.files.Source at [^>]*>`, `<graphviz.files.Source>`),
		mustRule(`^.* per loop .mean ± std. dev. of [0-9]+ runs, [0-9]+ loop each.`, `TIMING-REPORT`),
		mustRule(`peak memory: .* MiB, increment: .* MiB`, `MEMORY-REPORT`),
		mustRule(`<seaborn\..* at 0x[a-f0-9]*>`, `SEABORN-ID`),
		mustRule(`<pandas.core.groupby.generic.DataFrameGroupBy object at 0x[a-f0-9]*>`, `PANDAS_GROUP_BY`),
		mustRule(`<pymongo.results.InsertOneResult at 0x[a-f0-9]*>`, `MONGO_INSERT_ONE`),
		mustRule(`<pymongo.results.InsertManyResult at 0x[a-f0-9]*>`, `MONGO_INSERT_MANY`),
		mustRule(`<pymongo.cursor.Cursor at 0x[a-f0-9]*>`, `MONGO_CURSOR`),
		mustRule(`<pymongo.results.UpdateResult at 0x[a-f0-9]*>`, `MONGO_UPDATE`),
	}
}

// TimingRules returns the timing-magic rules: wall/CPU time lines and
// per-loop benchmark summaries.
func TimingRules() []Rule {
	return []Rule{
		mustRule(`CPU times: .*`, `CPU times: CPUTIME`),
		mustRule(`Wall time: .*`, `Wall time: WALLTIME`),
		mustRule(`.* per loop \(mean ± std. dev. of .* runs, .* loops each\)`, `TIMEIT_REPORT`),
	}
}
