package wasm

import (
	"io"

	"github.com/wasmic/wasmic/internal/leb128"
)

// reader is a forward-only cursor over a byte slice, shared by the module
// binary decoder and the per-function expression parser. It implements
// io.ByteReader so the leb128 package can decode directly off it without an
// intermediate allocation.
type reader struct {
	b   []byte
	pos int
}

func newReader(b []byte) *reader { return &reader{b: b} }

func (r *reader) ReadByte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) eof() bool { return r.pos >= len(r.b) }

func (r *reader) remaining() []byte { return r.b[r.pos:] }

// readByte reads a single raw byte, wrapping EOF as a MalformedError.
func (r *reader) readByte() (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, malformed("unexpected end of input")
	}
	return b, nil
}

func (r *reader) readBytes(n uint32) ([]byte, error) {
	if uint64(r.pos)+uint64(n) > uint64(len(r.b)) {
		return nil, malformed("unexpected end of input")
	}
	out := r.b[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

func (r *reader) readU32() (uint32, error) {
	v, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return 0, wrapLebErr(err)
	}
	return v, nil
}

func (r *reader) readU64() (uint64, error) {
	v, _, err := leb128.DecodeUint64(r)
	if err != nil {
		return 0, wrapLebErr(err)
	}
	return v, nil
}

func (r *reader) readI32() (int32, error) {
	v, _, err := leb128.DecodeInt32(r)
	if err != nil {
		return 0, wrapLebErr(err)
	}
	return v, nil
}

func (r *reader) readI33AsI64() (int64, error) {
	v, _, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return 0, wrapLebErr(err)
	}
	return v, nil
}

func (r *reader) readI64() (int64, error) {
	v, _, err := leb128.DecodeInt64(r)
	if err != nil {
		return 0, wrapLebErr(err)
	}
	return v, nil
}

func wrapLebErr(err error) error {
	if err == io.ErrUnexpectedEOF {
		return malformed("unexpected end of input")
	}
	return malformed("%s", err.Error())
}

// readName reads a length-prefixed UTF-8 string (the "name" production).
func (r *reader) readName() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(n)
	if err != nil {
		return "", err
	}
	if !isValidUTF8(b) {
		return "", malformed("invalid UTF-8 encoding of name")
	}
	return string(b), nil
}

func isValidUTF8(b []byte) bool {
	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c < 0x80:
			i++
		case c&0xe0 == 0xc0:
			if !continuationRun(b, i, 1) || c < 0xc2 {
				return false
			}
			i += 2
		case c&0xf0 == 0xe0:
			if !continuationRun(b, i, 2) {
				return false
			}
			if (c == 0xe0 && b[i+1] < 0xa0) || (c == 0xed && b[i+1] > 0x9f) {
				return false
			}
			i += 3
		case c&0xf8 == 0xf0:
			if !continuationRun(b, i, 3) || c > 0xf4 {
				return false
			}
			if (c == 0xf0 && b[i+1] < 0x90) || (c == 0xf4 && b[i+1] > 0x8f) {
				return false
			}
			i += 4
		default:
			return false
		}
	}
	return true
}

func continuationRun(b []byte, start, n int) bool {
	if start+n >= len(b) {
		return false
	}
	for i := 1; i <= n; i++ {
		if b[start+i]&0xc0 != 0x80 {
			return false
		}
	}
	return true
}
