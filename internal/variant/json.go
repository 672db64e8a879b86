package variant

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/tearfur/transmission/internal/quark"
)

// EncodeJSON serializes v as RFC 8259 JSON. Non-finite doubles are written
// as null, matching the original's behavior.
func EncodeJSON(v Value) []byte {
	var buf bytes.Buffer
	writeJSON(&buf, v)
	return buf.Bytes()
}

func writeJSON(buf *bytes.Buffer, v Value) {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindDouble:
		if isFinite(v.d) {
			buf.WriteString(strconv.FormatFloat(v.d, 'g', -1, 64))
		} else {
			buf.WriteString("null")
		}
	case KindString:
		writeJSONString(buf, v.s)
	case KindVector:
		buf.WriteByte('[')
		for i, e := range v.vec {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSON(buf, e)
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, k.String())
			buf.WriteByte(':')
			writeJSON(buf, v.vals[i])
		}
		buf.WriteByte('}')
	}
}

func isFinite(f float64) bool {
	return f == f && f*0 == 0 // excludes NaN and ±Inf without importing math
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// DecodeJSON parses a JSON document into a Value tree, interning map keys
// as quarks. It validates UTF-8 in strings per RFC 8259.
func DecodeJSON(data []byte) (Value, error) {
	p := &jsonParser{data: data}
	p.skipSpace()
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.data) {
		return Value{}, fmt.Errorf("variant: trailing data after JSON value at offset %d", p.pos)
	}
	return v, nil
}

type jsonParser struct {
	data []byte
	pos  int
}

func (p *jsonParser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *jsonParser) parseValue() (Value, error) {
	if p.pos >= len(p.data) {
		return Value{}, fmt.Errorf("variant: unexpected end of JSON input")
	}
	switch c := p.data[p.pos]; {
	case c == '{':
		return p.parseMap()
	case c == '[':
		return p.parseVector()
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == 't':
		return p.parseLiteral("true", Bool(true))
	case c == 'f':
		return p.parseLiteral("false", Bool(false))
	case c == 'n':
		return p.parseLiteral("null", Null())
	default:
		return p.parseNumber()
	}
}

func (p *jsonParser) parseLiteral(lit string, v Value) (Value, error) {
	if p.pos+len(lit) > len(p.data) || string(p.data[p.pos:p.pos+len(lit)]) != lit {
		return Value{}, fmt.Errorf("variant: invalid JSON literal at offset %d", p.pos)
	}
	p.pos += len(lit)
	return v, nil
}

func (p *jsonParser) parseNumber() (Value, error) {
	start := p.pos
	isFloat := false
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == '.' || c == 'e' || c == 'E' {
			isFloat = true
		}
		if c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9') || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return Value{}, fmt.Errorf("variant: invalid JSON number at offset %d", start)
	}
	text := string(p.data[start:p.pos])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, err
		}
		return Double(f), nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return Value{}, err
		}
		return Double(f), nil
	}
	return Int(i), nil
}

func (p *jsonParser) parseString() (string, error) {
	if p.data[p.pos] != '"' {
		return "", fmt.Errorf("variant: expected string at offset %d", p.pos)
	}
	p.pos++
	var buf bytes.Buffer
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == '"' {
			p.pos++
			if !utf8.Valid(buf.Bytes()) {
				return "", fmt.Errorf("variant: invalid UTF-8 in JSON string")
			}
			return buf.String(), nil
		}
		if c == '\\' {
			p.pos++
			if p.pos >= len(p.data) {
				return "", fmt.Errorf("variant: truncated escape sequence")
			}
			switch e := p.data[p.pos]; e {
			case '"', '\\', '/':
				buf.WriteByte(e)
			case 'n':
				buf.WriteByte('\n')
			case 't':
				buf.WriteByte('\t')
			case 'r':
				buf.WriteByte('\r')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case 'u':
				if p.pos+4 >= len(p.data) {
					return "", fmt.Errorf("variant: truncated unicode escape")
				}
				n, err := strconv.ParseUint(string(p.data[p.pos+1:p.pos+5]), 16, 32)
				if err != nil {
					return "", err
				}
				buf.WriteRune(rune(n))
				p.pos += 4
			default:
				return "", fmt.Errorf("variant: invalid escape sequence \\%c", e)
			}
			p.pos++
			continue
		}
		buf.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("variant: unterminated JSON string")
}

func (p *jsonParser) parseVector() (Value, error) {
	p.pos++ // '['
	v := NewVector(4)
	p.skipSpace()
	if p.pos < len(p.data) && p.data[p.pos] == ']' {
		p.pos++
		return v, nil
	}
	for {
		p.skipSpace()
		elem, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		v.Append(elem)
		p.skipSpace()
		if p.pos >= len(p.data) {
			return Value{}, fmt.Errorf("variant: unterminated JSON array")
		}
		if p.data[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.data[p.pos] == ']' {
			p.pos++
			return v, nil
		}
		return Value{}, fmt.Errorf("variant: expected ',' or ']' at offset %d", p.pos)
	}
}

func (p *jsonParser) parseMap() (Value, error) {
	p.pos++ // '{'
	v := NewMap()
	p.skipSpace()
	if p.pos < len(p.data) && p.data[p.pos] == '}' {
		p.pos++
		return v, nil
	}
	for {
		p.skipSpace()
		key, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.data) || p.data[p.pos] != ':' {
			return Value{}, fmt.Errorf("variant: expected ':' at offset %d", p.pos)
		}
		p.pos++
		p.skipSpace()
		val, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		v.Set(quark.Intern(key), val)
		p.skipSpace()
		if p.pos >= len(p.data) {
			return Value{}, fmt.Errorf("variant: unterminated JSON object")
		}
		if p.data[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.data[p.pos] == '}' {
			p.pos++
			return v, nil
		}
		return Value{}, fmt.Errorf("variant: expected ',' or '}' at offset %d", p.pos)
	}
}
