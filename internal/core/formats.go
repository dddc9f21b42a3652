package core

// formats.go registers the upload formats the Ingestor understands.
//
// Each format declares the file extensions and content types it answers to
// and a parser that turns the payload into records. The first non-empty
// record a parser returns is treated as the header by the Ingestor.

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
)

// ParseOptions tune the parsers.
type ParseOptions struct {
	// Charset decodes delimited text that is not valid UTF-8.
	Charset encoding.Encoding
}

// ParseFunc turns a payload into records, header included.
type ParseFunc func(payload []byte, opts ParseOptions) ([][]string, error)

// Format describes one supported upload format.
type Format struct {
	Kind         FormatKind
	Label        string
	Extensions   []string // lower case, with leading dot
	ContentTypes []string // media types without parameters
	Parse        ParseFunc
}

var (
	formats   = make(map[FormatKind]Format)
	formatsMu sync.RWMutex
)

func init() {
	RegisterFormat(Format{
		Kind:         FormatDelimited,
		Label:        "Delimited text (CSV)",
		Extensions:   []string{".csv", ".txt"},
		ContentTypes: []string{"text/csv", "text/plain", "application/csv"},
		Parse:        parseDelimited,
	})
	RegisterFormat(Format{
		Kind:         FormatJSON,
		Label:        "JSON list of objects",
		Extensions:   []string{".json"},
		ContentTypes: []string{"application/json", "text/json"},
		Parse:        parseJSON,
	})
	RegisterFormat(Format{
		Kind:         FormatXLSX,
		Label:        "Excel workbook (.xlsx)",
		Extensions:   []string{".xlsx"},
		ContentTypes: []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		Parse:        parseXLSX,
	})
	RegisterFormat(Format{
		Kind:         FormatXLS,
		Label:        "Excel 97-2003 workbook (.xls)",
		Extensions:   []string{".xls"},
		ContentTypes: []string{"application/vnd.ms-excel"},
		Parse:        parseXLS,
	})
}

// RegisterFormat adds a format to the registry.
// Panics if a format with the same kind is already registered.
func RegisterFormat(f Format) {
	formatsMu.Lock()
	defer formatsMu.Unlock()

	if _, exists := formats[f.Kind]; exists {
		panic(fmt.Sprintf("format already registered: %s", f.Kind))
	}
	formats[f.Kind] = f
}

// Formats returns all registered formats sorted by kind.
func Formats() []Format {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	result := make([]Format, 0, len(formats))
	for _, f := range formats {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Kind < result[j].Kind
	})
	return result
}

// DetectFormat picks the format for an upload. A registered extension wins;
// otherwise the declared content type decides. Either one matching is enough,
// so mislabeled uploads still go through.
func DetectFormat(fileName, contentType string) (Format, error) {
	formatsMu.RLock()
	defer formatsMu.RUnlock()

	ext := strings.ToLower(filepath.Ext(fileName))
	mediaType := contentType
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	var byType *Format
	for kind := range formats {
		f := formats[kind]
		for _, e := range f.Extensions {
			if ext != "" && e == ext {
				return f, nil
			}
		}
		for _, ct := range f.ContentTypes {
			if mediaType != "" && ct == mediaType && byType == nil {
				byType = &f
			}
		}
	}

	if byType != nil {
		return *byType, nil
	}
	return Format{}, fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, fileName, contentType)
}

// parseDelimited reads separated text. The separator is sniffed from the
// header line; quoting is lenient and short rows are allowed.
func parseDelimited(payload []byte, opts ParseOptions) ([][]string, error) {
	text, err := io.ReadAll(textReader(payload, opts.Charset))
	if err != nil {
		return nil, fmt.Errorf("%w: decode text: %v", ErrInvalidFile, err)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", ErrInvalidFile, err)
	}
	return records, nil
}

// sniffDelimiter counts candidate separators outside quotes on the first
// non-blank line. Semicolon wins ties and is the default.
func sniffDelimiter(text []byte) rune {
	candidates := []rune{';', ',', '\t'}

	var line string
	for _, l := range strings.Split(string(text), "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, c := range line {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[c]++
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// parseJSON reads a top-level array of objects. Columns keep the order in
// which keys are first seen, so the token stream is walked by hand.
func parseJSON(payload []byte, _ ParseOptions) ([][]string, error) {
	dec := json.NewDecoder(newBOMSkippingReader(bytes.NewReader(payload)))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrInvalidFile, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("%w: json must be a list of objects", ErrInvalidFile)
	}

	var (
		header  []string
		index   = make(map[string]int)
		objects []map[string]string
	)

	for i := 1; dec.More(); i++ {
		obj, keys, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidFile, i, err)
		}
		for _, k := range keys {
			if _, seen := index[k]; !seen {
				index[k] = len(header)
				header = append(header, k)
			}
		}
		objects = append(objects, obj)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrInvalidFile, err)
	}

	records := make([][]string, 0, len(objects)+1)
	records = append(records, header)
	for _, obj := range objects {
		rec := make([]string, len(header))
		for k, v := range obj {
			rec[index[k]] = v
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeObject reads one JSON object from dec, stringifying its values.
func decodeObject(dec *json.Decoder) (map[string]string, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected an object")
	}

	obj := make(map[string]string)
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected an object key")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if _, dup := obj[key]; !dup {
			keys = append(keys, key)
		}
		obj[key] = jsonScalar(raw)
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return obj, keys, nil
}

// jsonScalar renders a JSON value as cell text. Strings are unquoted, null
// is empty and nested values stay compact JSON.
func jsonScalar(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case trimmed[0] == '{' || trimmed[0] == '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}

// parseXLSX reads the first sheet of an Office Open XML workbook.
func parseXLSX(payload []byte, _ ParseOptions) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", ErrInvalidFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrInvalidFile, sheets[0], err)
	}
	return rows, nil
}

// parseXLS reads the first sheet of a legacy BIFF workbook. The decoder
// panics on some corrupt files, so panics become parse errors.
func parseXLS(payload []byte, _ ParseOptions) (records [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("%w: corrupt xls: %v", ErrInvalidFile, r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(payload), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: open xls: %v", ErrInvalidFile, err)
	}
	if wb == nil {
		return nil, fmt.Errorf("%w: no workbook stream", ErrInvalidFile)
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		rec := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			rec[c] = row.Col(c)
		}
		records = append(records, rec)
	}
	return records, nil
}

// xlsRow returns nil for rows the sheet has no record of; the decoder
// dereferences missing rows.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
