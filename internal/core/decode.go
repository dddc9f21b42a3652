package core

// decode.go prepares raw upload bytes for the format parsers.
//
// Delimited exports from salon software arrive in whatever encoding the
// exporting desktop used. The readers here:
//
//   - bomSkippingReader: removes the UTF-8 BOM (0xEF 0xBB 0xBF) added by Excel
//   - countingReader: tracks bytes read so oversized uploads stop early
//   - textReader: decodes non-UTF-8 payloads with a legacy charset
//
// Use readPayload to pull an upload into memory under the size limit and
// textReader to turn delimited bytes into UTF-8.

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkippingReader drops a leading UTF-8 BOM.
type bomSkippingReader struct {
	reader  io.Reader
	checked bool
	buf     []byte
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{reader: r}
}

func (r *bomSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		head := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(r.reader, head)
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n == len(utf8BOM) && bytes.Equal(head, utf8BOM) {
			n = 0
		}
		r.buf = head[:n]
		if n == 0 && err == io.EOF {
			return 0, io.EOF
		}
	}

	if len(r.buf) > 0 {
		copied := copy(p, r.buf)
		r.buf = r.buf[copied:]
		return copied, nil
	}

	return r.reader.Read(p)
}

// countingReader tracks bytes read from the underlying reader.
type countingReader struct {
	reader    io.Reader
	BytesRead int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// readPayload reads r into memory. It returns ErrFileTooLarge as soon as
// more than limit bytes have been read, without consuming the rest.
func readPayload(r io.Reader, limit int64) ([]byte, error) {
	counter := &countingReader{reader: io.LimitReader(r, limit+1)}

	data, err := io.ReadAll(counter)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if counter.BytesRead > limit {
		return nil, &FileSizeError{Limit: limit}
	}
	return data, nil
}

// lookupCharset resolves a charset name such as "windows-1250" or
// "iso-8859-2". Unknown names fall back to Windows-1250.
func lookupCharset(name string) encoding.Encoding {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return unicode.UTF8
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	case "iso-8859-2", "latin2", "latin-2":
		return charmap.ISO8859_2
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1
	case "windows-1251", "cp1251":
		return charmap.Windows1251
	default:
		return charmap.Windows1250
	}
}

// textReader returns a UTF-8 reader over payload with any BOM removed.
// Payloads that are not valid UTF-8 are decoded with fallback.
func textReader(payload []byte, fallback encoding.Encoding) io.Reader {
	var r io.Reader = newBOMSkippingReader(bytes.NewReader(payload))
	if !utf8.Valid(payload) && fallback != nil {
		r = transform.NewReader(r, fallback.NewDecoder())
	}
	return r
}
