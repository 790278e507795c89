package catalog

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the charset supplier exports are written in.
const DefaultEncoding = "windows-1254"

// Decode converts raw catalog bytes to text. label is a WHATWG encoding label
// such as "windows-1254", "iso-8859-9" or "utf-8"; an empty label means
// DefaultEncoding and an unknown one falls back to UTF-8. A byte order mark
// overrides the label.
func Decode(data []byte, label string) string {
	enc := lookupEncoding(label)

	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}

func lookupEncoding(label string) encoding.Encoding {
	label = strings.TrimSpace(label)
	if label == "" {
		label = DefaultEncoding
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return unicode.UTF8
	}
	return enc
}

// KnownEncoding reports whether label names a supported encoding.
func KnownEncoding(label string) bool {
	if strings.TrimSpace(label) == "" {
		return true
	}
	_, err := htmlindex.Get(label)
	return err == nil
}
