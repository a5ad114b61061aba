package docstore

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names the on-disk text encoding of a document.
type Encoding string

const (
	// EncodingUTF8 passes bytes through untouched, including invalid UTF-8.
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF8BOM Encoding = "utf-8-bom"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingUTF16BE Encoding = "utf-16be"
	EncodingLatin1  Encoding = "latin1"
	EncodingCP1252  Encoding = "windows-1252"
)

// Encodings lists the supported encodings.
var Encodings = []Encoding{
	EncodingUTF8,
	EncodingUTF8BOM,
	EncodingUTF16LE,
	EncodingUTF16BE,
	EncodingLatin1,
	EncodingCP1252,
}

// ParseEncoding validates an encoding name. The empty string means UTF-8.
func ParseEncoding(s string) (Encoding, error) {
	e := Encoding(s)
	if _, err := e.codec(); err != nil {
		return "", err
	}
	if e == "" {
		return EncodingUTF8, nil
	}
	return e, nil
}

func (e Encoding) name() string {
	if e == "" {
		return string(EncodingUTF8)
	}
	return string(e)
}

// codec returns the x/text encoding, or nil for raw UTF-8.
func (e Encoding) codec() (encoding.Encoding, error) {
	switch e {
	case "", EncodingUTF8:
		return nil, nil
	case EncodingUTF8BOM:
		return unicode.UTF8BOM, nil
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	case EncodingLatin1:
		return charmap.ISO8859_1, nil
	case EncodingCP1252:
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q: must be one of %v", string(e), Encodings)
	}
}

func (e Encoding) decode(data []byte) (string, error) {
	c, err := e.codec()
	if err != nil {
		return "", err
	}
	if c == nil {
		return string(data), nil
	}
	out, err := c.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// encode fails when doc holds a rune the encoding cannot represent.
func (e Encoding) encode(doc string) ([]byte, error) {
	c, err := e.codec()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return []byte(doc), nil
	}
	return c.NewEncoder().Bytes([]byte(doc))
}
