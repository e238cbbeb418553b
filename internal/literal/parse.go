package literal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseError reports where and why a literal failed to parse. Callers
// treat any ParseError as "not a literal" rather than a fault.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("literal parse error at offset %d: %s", e.Pos, e.Message)
}

// Parse reads a single literal from s. The whole input must be consumed
// (trailing whitespace allowed). Supported forms: None, True, False,
// integers, floats, quoted strings, lists, tuples, sets, dicts, and the
// empty-set spelling set(). Tuples parse as List; a parenthesised single
// value without a trailing comma is plain grouping, matching the source
// notation.
func Parse(s string) (Value, error) {
	p := &parser{src: s}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Pos: p.pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) value() (Value, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '[':
		return p.sequence('[', ']')
	case c == '(':
		return p.group()
	case c == '{':
		return p.setOrMap()
	case c == '\'' || c == '"':
		return p.str()
	case c == '-' || c == '+' || (c >= '0' && c <= '9') || c == '.':
		return p.number()
	default:
		return p.keyword()
	}
}

func (p *parser) keyword() (Value, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdent(p.src[p.pos]) {
		p.pos++
	}
	word := p.src[start:p.pos]
	switch word {
	case "None":
		return Null{}, nil
	case "True":
		return Bool(true), nil
	case "False":
		return Bool(false), nil
	case "set":
		// Only the empty-set spelling set() is a literal.
		p.skipSpace()
		if strings.HasPrefix(p.src[p.pos:], "(") {
			p.pos++
			p.skipSpace()
			if p.peek() == ')' {
				p.pos++
				return Set{}, nil
			}
		}
		return nil, p.errorf("set(...) with arguments is not a literal")
	case "":
		return nil, p.errorf("unexpected character %q", p.peek())
	default:
		return nil, p.errorf("unknown identifier %q", word)
	}
}

func isIdent(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (p *parser) number() (Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	isFloat := false
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c >= '0' && c <= '9':
			p.pos++
		case c == '.':
			isFloat = true
			p.pos++
		case c == 'e' || c == 'E':
			isFloat = true
			p.pos++
			if n := p.peek(); n == '-' || n == '+' {
				p.pos++
			}
		default:
			goto done
		}
	}
done:
	text := p.src[start:p.pos]
	if text == "" || text == "-" || text == "+" {
		return nil, p.errorf("malformed number")
	}
	if !isFloat {
		n, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return Int(n), nil
		}
		// Out-of-range integers fall back to float, as the source
		// language would promote them on comparison anyway.
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf("malformed number %q", text)
	}
	return Float(f), nil
}

func (p *parser) str() (Value, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return Str(b.String()), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.src) {
				return nil, p.errorf("unterminated escape")
			}
			esc := p.src[p.pos]
			p.pos++
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(esc)
			case 'x':
				if err := p.hexEscape(&b, 2); err != nil {
					return nil, err
				}
			case 'u':
				if err := p.hexEscape(&b, 4); err != nil {
					return nil, err
				}
			default:
				// Unknown escapes pass through verbatim, matching the
				// lenient handling of raw reprs.
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return nil, p.errorf("unterminated string")
}

func (p *parser) hexEscape(b *strings.Builder, width int) error {
	if p.pos+width > len(p.src) {
		return p.errorf("truncated hex escape")
	}
	n, err := strconv.ParseUint(p.src[p.pos:p.pos+width], 16, 32)
	if err != nil {
		return p.errorf("malformed hex escape")
	}
	p.pos += width
	var buf [utf8.UTFMax]byte
	b.Write(buf[:utf8.EncodeRune(buf[:], rune(n))])
	return nil
}

// sequence parses a bracketed, comma-separated element list.
func (p *parser) sequence(open, close byte) (Value, error) {
	p.pos++ // consume open
	var elems List
	for {
		p.skipSpace()
		if p.peek() == close {
			p.pos++
			return elems, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case close:
			p.pos++
			return elems, nil
		default:
			return nil, p.errorf("expected ',' or %q", string(close))
		}
	}
}

// group parses a parenthesised form: grouping when it holds exactly one
// element with no trailing comma, otherwise a tuple (returned as List).
func (p *parser) group() (Value, error) {
	p.pos++ // consume '('
	var elems List
	sawComma := false
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			if len(elems) == 1 && !sawComma {
				return elems[0], nil
			}
			return elems, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			sawComma = true
			p.pos++
		case ')':
			// handled at loop top
		default:
			return nil, p.errorf("expected ',' or ')'")
		}
	}
}

// setOrMap parses a braced form: {} is an empty map, {a, b} a set,
// {k: v} a map.
func (p *parser) setOrMap() (Value, error) {
	p.pos++ // consume '{'
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return Map{}, nil
	}
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == ':' {
		return p.mapRest(first)
	}
	return p.setRest(first)
}

func (p *parser) setRest(first Value) (Value, error) {
	elems := []Value{first}
	for {
		p.skipSpace()
		switch p.peek() {
		case '}':
			p.pos++
			return NewSet(elems...), nil
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				return NewSet(elems...), nil
			}
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		default:
			return nil, p.errorf("expected ',' or '}' in set")
		}
	}
}

func (p *parser) mapRest(firstKey Value) (Value, error) {
	var entries Map
	key := firstKey
	for {
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' in mapping")
		}
		p.pos++
		val, err := p.value()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Val: val})
		p.skipSpace()
		switch p.peek() {
		case '}':
			p.pos++
			return entries, nil
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == '}' {
				p.pos++
				return entries, nil
			}
			key, err = p.value()
			if err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf("expected ',' or '}' in mapping")
		}
	}
}
