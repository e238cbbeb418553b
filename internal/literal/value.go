package literal

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a sealed interface over the restricted literal forms this package
// understands: null, booleans, integers, floats, strings, and nested
// lists/sets/maps of those. Nothing else implements it.
//
// The restriction is deliberate: reference outputs come from untrusted
// notebook files, so structural classifiers must never hand their textual
// payloads to a general-purpose evaluator.
type Value interface {
	literalValue()
}

// Null represents the None literal.
type Null struct{}

func (Null) literalValue() {}

// Bool represents True/False.
type Bool bool

func (Bool) literalValue() {}

// Int represents an integer literal. Always int64.
type Int int64

func (Int) literalValue() {}

// Float represents a floating point literal.
type Float float64

func (Float) literalValue() {}

// Str represents a quoted string literal.
type Str string

func (Str) literalValue() {}

// List represents a list (or tuple) literal. Element order is preserved.
type List []Value

func (List) literalValue() {}

// Set represents a set literal. Elements are held in canonical sorted
// order so two sets with the same members always render identically.
type Set []Value

func (Set) literalValue() {}

// Entry is one key/value pair of a Map.
type Entry struct {
	Key Value
	Val Value
}

// Map represents a mapping literal. Entries keep their source order;
// use SortedKeys for deterministic key sequences.
type Map []Entry

func (Map) literalValue() {}

// NewSet builds a Set from elements, deduplicating and sorting them
// into canonical order.
func NewSet(elems ...Value) Set {
	seen := make(map[string]bool, len(elems))
	out := make(Set, 0, len(elems))
	for _, e := range elems {
		key := Canonical(e)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	Sort(out)
	return out
}

// SortedKeys returns the map's keys in canonical sorted order.
func (m Map) SortedKeys() []Value {
	keys := make([]Value, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}
	Sort(keys)
	return keys
}

// Sort orders values in place: numbers before strings before containers,
// numbers compared numerically across int/float, everything else by
// canonical rendering. Mixed-type ordering is total, unlike the source
// language's sort which raises on incomparable types.
func Sort(vals []Value) {
	// Insertion sort keeps this dependency-free and stable; classifier
	// summaries are small.
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && Compare(vals[j-1], vals[j]) > 0; j-- {
			vals[j-1], vals[j] = vals[j], vals[j-1]
		}
	}
}

// Compare defines the total order used by Sort. Returns -1, 0, or 1.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case rankNumber:
		fa, fb := numeric(a), numeric(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	default:
		return strings.Compare(Canonical(a), Canonical(b))
	}
}

const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
	rankContainer
)

func rank(v Value) int {
	switch v.(type) {
	case Null:
		return rankNull
	case Bool:
		return rankBool
	case Int, Float:
		return rankNumber
	case Str:
		return rankString
	default:
		return rankContainer
	}
}

func numeric(v Value) float64 {
	switch n := v.(type) {
	case Int:
		return float64(n)
	case Float:
		return float64(n)
	}
	return 0
}

// Canonical renders a value in a deterministic literal form. Equal values
// always render identically, so canonical strings double as equality and
// hash keys for classifier summaries.
func Canonical(v Value) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

// Equal reports whether two values are structurally equal.
func Equal(a, b Value) bool {
	return Canonical(a) == Canonical(b)
}

func writeCanonical(b *strings.Builder, v Value) {
	switch val := v.(type) {
	case Null:
		b.WriteString("None")
	case Bool:
		if val {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case Int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		b.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 64))
	case Str:
		b.WriteString(quote(string(val)))
	case List:
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	case Set:
		if len(val) == 0 {
			b.WriteString("set()")
			return
		}
		sorted := make([]Value, len(val))
		copy(sorted, val)
		Sort(sorted)
		b.WriteByte('{')
		for i, e := range sorted {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCanonical(b, e)
		}
		b.WriteByte('}')
	case Map:
		b.WriteByte('{')
		for i, e := range val {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCanonical(b, e.Key)
			b.WriteString(": ")
			writeCanonical(b, e.Val)
		}
		b.WriteByte('}')
	default:
		// Sealed interface: unreachable unless a new variant is added
		// without updating this switch.
		b.WriteString(fmt.Sprintf("<unknown %T>", v))
	}
}

// quote renders a string the way literal sources write them: single
// quotes, with quotes, backslashes and control characters escaped.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
