package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	qerr "github.com/docquery/docquery/internal/errors"
)

// encodingLadder is tried in order for plain-text files. The first
// encoding that decodes without unmapped bytes wins. Decoders carry
// transform state, so each decode constructs its own from the Encoding.
var encodingLadder = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-16", unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	{"cp1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
	{"gbk", simplifiedchinese.GBK},
}

// readTextFile reads a plain-text file, walking the encoding ladder
// until one decodes cleanly.
func readTextFile(path string) (string, error) {
	sourceID := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", qerr.New(qerr.ErrCodeFileNotFound, "failed to read text file", err).WithSource(sourceID)
	}

	text, err := decodeText(data)
	if err != nil {
		return "", qerr.New(qerr.ErrCodeEncodingUnknown, "no encoding decoded the file", err).WithSource(sourceID)
	}
	return strings.TrimSpace(text), nil
}

// decodeText tries utf-8 first, then the ladder of legacy encodings.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	for _, enc := range encodingLadder {
		if enc.name == "utf-16" && !hasUTF16BOM(data) {
			continue
		}
		decoded, err := enc.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		// Unmapped bytes surface as replacement runes; treat those as
		// a failed rung so a later encoding gets a chance.
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return string(decoded), nil
	}

	return "", errUndecodable
}

var errUndecodable = &undecodableError{}

type undecodableError struct{}

func (*undecodableError) Error() string { return "text is not decodable by any known encoding" }

// hasUTF16BOM reports whether data starts with a UTF-16 byte order mark.
func hasUTF16BOM(data []byte) bool {
	return len(data) >= 2 &&
		((data[0] == 0xFF && data[1] == 0xFE) || (data[0] == 0xFE && data[1] == 0xFF))
}
