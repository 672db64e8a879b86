package variant

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/tearfur/transmission/internal/quark"
)

// EncodeBencode serializes v using the bencode format. Dictionary keys are
// always emitted in byte-lexicographic order, regardless of the map's
// insertion order, as required for announce responses and torrent files.
func EncodeBencode(v Value) []byte {
	var buf bytes.Buffer
	writeBencode(&buf, v)
	return buf.Bytes()
}

func writeBencode(buf *bytes.Buffer, v Value) {
	switch v.kind {
	case KindNull:
		// bencode has no null; encode as an empty string, the conventional
		// choice also used by libtransmission's variant-bencode writer.
		buf.WriteString("0:")
	case KindBool:
		if v.b {
			buf.WriteString("i1e")
		} else {
			buf.WriteString("i0e")
		}
	case KindInt:
		fmt.Fprintf(buf, "i%de", v.i)
	case KindDouble:
		// bencode has no float type; truncate to integer, matching the
		// original's tr_variant_serialize_bencode behavior.
		fmt.Fprintf(buf, "i%de", int64(v.d))
	case KindString:
		fmt.Fprintf(buf, "%d:%s", len(v.s), v.s)
	case KindVector:
		buf.WriteByte('l')
		for _, e := range v.vec {
			writeBencode(buf, e)
		}
		buf.WriteByte('e')
	case KindMap:
		buf.WriteByte('d')
		type kv struct {
			name string
			val  Value
		}
		entries := make([]kv, len(v.keys))
		for i, k := range v.keys {
			entries[i] = kv{k.String(), v.vals[i]}
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
		for _, e := range entries {
			fmt.Fprintf(buf, "%d:%s", len(e.name), e.name)
			writeBencode(buf, e.val)
		}
		buf.WriteByte('e')
	}
}

// DecodeBencode parses a bencoded document into a Value tree. String
// decoding preserves raw bytes, since bencode is byte-oriented rather than
// text-oriented.
func DecodeBencode(data []byte) (Value, error) {
	p := &bencodeParser{data: data}
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	if p.pos != len(p.data) {
		return Value{}, fmt.Errorf("variant: trailing data after bencode value at offset %d", p.pos)
	}
	return v, nil
}

type bencodeParser struct {
	data []byte
	pos  int
}

func (p *bencodeParser) parseValue() (Value, error) {
	if p.pos >= len(p.data) {
		return Value{}, fmt.Errorf("variant: unexpected end of bencode input")
	}
	switch c := p.data[p.pos]; {
	case c == 'i':
		return p.parseInt()
	case c == 'l':
		return p.parseList()
	case c == 'd':
		return p.parseDict()
	case c >= '0' && c <= '9':
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	default:
		return Value{}, fmt.Errorf("variant: invalid bencode tag %q at offset %d", c, p.pos)
	}
}

func (p *bencodeParser) parseInt() (Value, error) {
	p.pos++ // 'i'
	start := p.pos
	for p.pos < len(p.data) && p.data[p.pos] != 'e' {
		p.pos++
	}
	if p.pos >= len(p.data) {
		return Value{}, fmt.Errorf("variant: unterminated bencode integer")
	}
	n, err := strconv.ParseInt(string(p.data[start:p.pos]), 10, 64)
	if err != nil {
		return Value{}, err
	}
	p.pos++ // 'e'
	return Int(n), nil
}

func (p *bencodeParser) parseString() (string, error) {
	start := p.pos
	for p.pos < len(p.data) && p.data[p.pos] != ':' {
		p.pos++
	}
	if p.pos >= len(p.data) {
		return "", fmt.Errorf("variant: malformed bencode string length")
	}
	n, err := strconv.Atoi(string(p.data[start:p.pos]))
	if err != nil || n < 0 {
		return "", fmt.Errorf("variant: invalid bencode string length at offset %d", start)
	}
	p.pos++ // ':'
	if p.pos+n > len(p.data) {
		return "", fmt.Errorf("variant: bencode string length exceeds input")
	}
	s := string(p.data[p.pos : p.pos+n])
	p.pos += n
	return s, nil
}

func (p *bencodeParser) parseList() (Value, error) {
	p.pos++ // 'l'
	v := NewVector(4)
	for {
		if p.pos >= len(p.data) {
			return Value{}, fmt.Errorf("variant: unterminated bencode list")
		}
		if p.data[p.pos] == 'e' {
			p.pos++
			return v, nil
		}
		elem, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		v.Append(elem)
	}
}

func (p *bencodeParser) parseDict() (Value, error) {
	p.pos++ // 'd'
	v := NewMap()
	for {
		if p.pos >= len(p.data) {
			return Value{}, fmt.Errorf("variant: unterminated bencode dict")
		}
		if p.data[p.pos] == 'e' {
			p.pos++
			return v, nil
		}
		key, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		val, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		v.Set(quark.Intern(key), val)
	}
}
