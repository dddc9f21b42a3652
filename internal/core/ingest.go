package core

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
)

// DefaultMaxFileSize is the largest upload accepted (10 MiB).
const DefaultMaxFileSize = 10 << 20

// DefaultPreviewRows is the number of rows returned with an ingest result.
const DefaultPreviewRows = 10

// Ingestor parses uploads into jobs and rows.
type Ingestor struct {
	maxSize     int64
	previewRows int
	charset     encoding.Encoding
	now         func() time.Time
}

// NewIngestor creates an Ingestor. Zero values fall back to the defaults.
func NewIngestor(maxSize int64, previewRows int, charset string) *Ingestor {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return &Ingestor{
		maxSize:     maxSize,
		previewRows: previewRows,
		charset:     lookupCharset(charset),
		now:         time.Now,
	}
}

// Upload is one file handed to the Ingestor.
type Upload struct {
	FileName    string
	ContentType string
	Body        io.Reader
}

// ParsedUpload is the full result of ingesting a file.
type ParsedUpload struct {
	Job     ImportJob
	Rows    []Row
	Mapping ColumnMapping
	Preview []PreviewRow
}

// Ingest reads and parses an upload. The size limit is enforced before
// anything is parsed; the format is then taken from the extension or the
// declared content type.
func (in *Ingestor) Ingest(ctx context.Context, up Upload) (*ParsedUpload, error) {
	payload, err := readPayload(up.Body, in.maxSize)
	if err != nil {
		return nil, err
	}
	format, err := DetectFormat(up.FileName, up.ContentType)
	if err != nil {
		return nil, err
	}

	// An empty delimited file is a file without rows. The structured
	// formats have no valid empty encoding.
	if len(payload) == 0 && format.Kind != FormatDelimited {
		return nil, fmt.Errorf("%w: %s upload has no content", ErrEmptyPayload, format.Kind)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := format.Parse(payload, ParseOptions{Charset: in.charset})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format.Kind, err)
	}

	columns, rows := buildRows(records)

	job := ImportJob{
		ID:        uuid.New().String(),
		FileName:  up.FileName,
		Size:      int64(len(payload)),
		Format:    format.Kind,
		Columns:   columns,
		TotalRows: len(rows),
		CreatedAt: in.now().UTC(),
	}

	n := min(in.previewRows, len(rows))
	preview := make([]PreviewRow, 0, n)
	for _, r := range rows[:n] {
		preview = append(preview, PreviewRow{Row: r.Number, Data: r.Raw})
	}

	return &ParsedUpload{
		Job:     job,
		Rows:    rows,
		Mapping: SuggestMapping(columns),
		Preview: preview,
	}, nil
}

// buildRows takes the first non-empty record as the header and turns every
// later non-empty record into a Row.
func buildRows(records [][]string) ([]string, []Row) {
	start := -1
	for i, rec := range records {
		if !isEmptyRecord(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return []string{}, []Row{}
	}

	width := 0
	for _, rec := range records[start:] {
		width = max(width, len(rec))
	}
	columns := cleanHeader(records[start], width)

	rows := make([]Row, 0, len(records)-start-1)
	for _, rec := range records[start+1:] {
		if isEmptyRecord(rec) {
			continue
		}
		raw := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				raw[col] = strings.TrimSpace(rec[i])
			} else {
				raw[col] = ""
			}
		}
		rows = append(rows, Row{Number: len(rows) + 1, Raw: raw})
	}
	return columns, rows
}

// cleanHeader trims names, names blank columns column_N and suffixes
// repeated names with _2, _3.
func cleanHeader(header []string, width int) []string {
	columns := make([]string, width)
	seen := make(map[string]int, width)
	taken := make(map[string]bool, width)

	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = CleanCell(header[i])
		}
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}

		key := strings.ToLower(name)
		seen[key]++
		if seen[key] > 1 || taken[key] {
			base := name
			for n := max(seen[key], 2); ; n++ {
				name = base + "_" + strconv.Itoa(n)
				if !taken[strings.ToLower(name)] {
					break
				}
			}
		}
		taken[strings.ToLower(name)] = true
		columns[i] = name
	}
	return columns
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// headerAliases lists recognized header names per field, in comparable form
// (diacritics removed, lower case, letters and digits only).
var headerAliases = map[Field][]string{
	FieldClientName: {
		"client", "clientname", "name", "fullname", "customer", "customername",
		"klijent", "imeklijenta", "ime", "imeiprezime", "imeprezime", "kupac", "musterija", "stranka",
	},
	FieldClientEmail: {
		"email", "emailaddress", "mail", "clientemail", "emailadresa", "adresaeposte", "eposta",
	},
	FieldClientPhone: {
		"phone", "phonenumber", "mobile", "mobilephone", "tel", "telephone", "clientphone",
		"telefon", "mobitel", "mobilni", "brojtelefona", "kontakt",
	},
	FieldDate: {
		"date", "appointmentdate", "day", "datum", "datumtermina", "dan",
	},
	FieldTime: {
		"time", "starttime", "appointmenttime", "start", "vrijeme", "vreme", "sat", "pocetak", "termin",
	},
	FieldServices: {
		"service", "services", "treatment", "treatments", "servicename",
		"usluga", "usluge", "tretman", "tretmani",
	},
	FieldDuration: {
		"duration", "durationminutes", "durationmin", "minutes", "length", "trajanje", "trajanjemin", "minuta",
	},
	FieldNotes: {
		"notes", "note", "comment", "comments", "remarks", "napomena", "napomene", "biljeska", "beleska", "opis",
	},
}

// SuggestMapping guesses which detected column feeds each field from the
// header names. The first column matching a field wins.
func SuggestMapping(columns []string) ColumnMapping {
	mapping := make(ColumnMapping)
	used := make(map[string]bool)

	for _, f := range AllFields {
		for _, col := range columns {
			if used[col] {
				continue
			}
			key := headerKey(col)
			for _, alias := range headerAliases[f] {
				if key == alias {
					mapping[f] = col
					used[col] = true
					break
				}
			}
			if _, ok := mapping[f]; ok {
				break
			}
		}
	}
	return mapping
}

func headerKey(s string) string {
	s = foldDiacritics(strings.ToLower(s))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
