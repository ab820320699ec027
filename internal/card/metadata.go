package card

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Metadata is written into exported cards so photo apps can show who the card is for.
type Metadata struct {
	Title       string // event title
	Description string // guest display name
	Author      string
}

func (m Metadata) entries() [][2]string {
	var out [][2]string
	for _, kv := range [][2]string{
		{"Title", m.Title},
		{"Description", m.Description},
		{"Author", m.Author},
	} {
		if kv[1] != "" {
			out = append(out, kv)
		}
	}
	return out
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// WithMetadata inserts one iTXt chunk per non-empty field right after IHDR.
// Image data chunks are copied unchanged.
func WithMetadata(data []byte, meta Metadata) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, fmt.Errorf("%w: not a png", ErrUnavailable)
	}
	// IHDR is always first: 4 length + 4 type + 13 data + 4 crc.
	ihdrEnd := len(pngSignature) + 25
	if len(data) < ihdrEnd || string(data[12:16]) != "IHDR" {
		return nil, fmt.Errorf("%w: png without IHDR", ErrUnavailable)
	}

	var buf bytes.Buffer
	buf.Grow(len(data) + 256)
	buf.Write(data[:ihdrEnd])
	for _, kv := range meta.entries() {
		writeChunk(&buf, "iTXt", itxt(kv[0], kv[1]))
	}
	buf.Write(data[ihdrEnd:])
	return buf.Bytes(), nil
}

// itxt builds an uncompressed iTXt body: keyword, NUL, compression flag, method,
// empty language tag, empty translated keyword, UTF-8 text.
func itxt(keyword, text string) []byte {
	body := make([]byte, 0, len(keyword)+len(text)+5)
	body = append(body, keyword...)
	body = append(body, 0, 0, 0, 0, 0)
	body = append(body, text...)
	return body
}

func writeChunk(buf *bytes.Buffer, typ string, body []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(body)))
	buf.Write(length[:])

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(body)

	buf.WriteString(typ)
	buf.Write(body)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])
}

// ReadMetadata returns the tEXt and uncompressed iTXt entries of a PNG.
func ReadMetadata(data []byte) (map[string]string, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("not a png")
	}
	out := make(map[string]string)
	rest := data[len(pngSignature):]
	for len(rest) >= 12 {
		n := int(binary.BigEndian.Uint32(rest[:4]))
		if len(rest) < 12+n {
			return nil, errors.New("truncated png chunk")
		}
		typ := string(rest[4:8])
		body := rest[8 : 8+n]
		if crc32.ChecksumIEEE(rest[4:8+n]) != binary.BigEndian.Uint32(rest[8+n:12+n]) {
			return nil, fmt.Errorf("bad crc in %s chunk", typ)
		}
		switch typ {
		case "tEXt":
			if k, v, ok := bytes.Cut(body, []byte{0}); ok {
				out[string(k)] = string(v)
			}
		case "iTXt":
			k, v, ok := bytes.Cut(body, []byte{0})
			// compression flag, method, then two NUL terminated strings
			if ok && len(v) >= 2 && v[0] == 0 {
				v = v[2:]
				if _, v, ok = bytes.Cut(v, []byte{0}); ok {
					if _, v, ok = bytes.Cut(v, []byte{0}); ok {
						out[string(k)] = string(v)
					}
				}
			}
		case "IEND":
			return out, nil
		}
		rest = rest[12+n:]
	}
	return out, nil
}
