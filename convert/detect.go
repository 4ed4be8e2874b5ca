package convert

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/h2non/filetype"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// isArchiveFile checks if file has zip extension and zip signature.
func isArchiveFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	// 262 bytes is enough for any signature filetype knows about
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}

// fileFilter selects stylesheets by their path relative to the walked root.
type fileFilter struct {
	include []string
	exclude []string
}

func newFileFilter(include, exclude []string) (*fileFilter, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("bad file pattern %q", p)
		}
	}
	return &fileFilter{include: include, exclude: exclude}, nil
}

// match reports whether any include pattern and no exclude pattern matches.
// Patterns always use "/" as separator.
func (ff *fileFilter) match(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range ff.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range ff.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

func (e srcEncoding) String() string {
	switch e {
	case encUTF8:
		return "utf-8"
	case encUTF16BigEndian:
		return "utf-16be"
	case encUTF16LittleEndian:
		return "utf-16le"
	case encUTF32BigEndian:
		return "utf-32be"
	case encUTF32LittleEndian:
		return "utf-32le"
	}
	return "unknown"
}

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

// detectUTF looks for byte order mark. UTF-32LE must be checked before
// UTF-16LE since their marks share first two bytes.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	}
	return encUnknown
}

// selectReader returns reader producing UTF-8 for data with byte order mark.
func selectReader(r io.Reader, enc srcEncoding) io.Reader {
	switch enc {
	case encUnknown:
		return r
	case encUTF8:
		return transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	case encUTF16BigEndian:
		return transform.NewReader(r, unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder())
	case encUTF16LittleEndian:
		return transform.NewReader(r, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
	case encUTF32BigEndian:
		return transform.NewReader(r, utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder())
	case encUTF32LittleEndian:
		return transform.NewReader(r, utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM).NewDecoder())
	}
	// this should never happen
	panic(fmt.Sprintf("unexpected source encoding %d", enc))
}

// charsetRule matches @charset rule which is only valid at the very beginning
// of a stylesheet.
var charsetRule = regexp.MustCompile(`^@charset\s+"([^"]+)"\s*;`)

// declaredCharset returns encoding named by leading @charset rule, nil when
// there is none or it names UTF-8. Names are WHATWG encoding labels, same as
// browsers use for stylesheets. UTF-16 labels mean UTF-8 here: stylesheet which
// is really in UTF-16 has byte order mark.
func declaredCharset(data []byte) (encoding.Encoding, error) {
	m := charsetRule.FindSubmatch(data)
	if m == nil {
		return nil, nil
	}
	enc, name := charset.Lookup(string(m[1]))
	if enc == nil {
		return nil, fmt.Errorf("unknown charset %q", m[1])
	}
	if name == "utf-8" || strings.HasPrefix(name, "utf-16") {
		return nil, nil
	}
	return enc, nil
}

// decodeStylesheet converts stylesheet data to UTF-8. Byte order mark wins,
// then forced code page, then @charset rule. It reports whether data was
// re-encoded, so @charset rule has to be updated.
func decodeStylesheet(data []byte, forced encoding.Encoding) ([]byte, bool, error) {
	if enc := detectUTF(data); enc != encUnknown {
		out, err := io.ReadAll(selectReader(bytes.NewReader(data), enc))
		return out, enc != encUTF8, err
	}

	enc := forced
	if enc == nil {
		var err error
		if enc, err = declaredCharset(data); err != nil {
			return nil, false, err
		}
	}
	if enc == nil {
		return data, false, nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, false, fmt.Errorf("unable to decode stylesheet: %w", err)
	}
	return out, true, nil
}
