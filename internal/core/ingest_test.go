package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingReader errors if it is read past the size check.
type failingReader struct {
	data []byte
	read int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.read >= len(r.data) {
		return 0, errors.New("reader exhausted")
	}
	n := copy(p, r.data[r.read:])
	r.read += n
	return n, nil
}

func TestIngest_Delimited(t *testing.T) {
	in := NewIngestor(0, 0, "")
	csv := "\xEF\xBB\xBFKlijent;Email;Datum;Vrijeme;Usluge;;Klijent\n" +
		"Ana Horvat;ana@example.com;05.03.2024;10:00;Šišanje;x;dup\n" +
		";;;;;;\n" +
		"Ivo Ivić;;06.03.2024;11:00;Manikura\n"

	res, err := in.Ingest(context.Background(), Upload{FileName: "povijest.csv", Body: strings.NewReader(csv)})
	require.NoError(t, err)

	job := res.Job
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "povijest.csv", job.FileName)
	assert.Equal(t, FormatDelimited, job.Format)
	assert.Equal(t, int64(len(csv)), job.Size)
	assert.Equal(t, []string{"Klijent", "Email", "Datum", "Vrijeme", "Usluge", "column_6", "Klijent_2"}, job.Columns)
	assert.Equal(t, 2, job.TotalRows)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, 1, res.Rows[0].Number)
	assert.Equal(t, 2, res.Rows[1].Number)
	assert.Equal(t, "Ivo Ivić", res.Rows[1].Raw["Klijent"])
	assert.Equal(t, "", res.Rows[1].Raw["Klijent_2"], "short rows are padded")

	assert.Equal(t, ColumnMapping{
		FieldClientName:  "Klijent",
		FieldClientEmail: "Email",
		FieldDate:        "Datum",
		FieldTime:        "Vrijeme",
		FieldServices:    "Usluge",
	}, res.Mapping)

	require.Len(t, res.Preview, 2)
	assert.Equal(t, 1, res.Preview[0].Row)
}

func TestIngest_FileTooLargeBeforeParsing(t *testing.T) {
	in := NewIngestor(DefaultMaxFileSize, 0, "")
	body := &failingReader{data: bytes.Repeat([]byte("a;b\n"), DefaultMaxFileSize/4+1)}

	_, err := in.Ingest(context.Background(), Upload{FileName: "big.csv", Body: body})
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, DefaultMaxFileSize+1, body.read, "reading stops right after the limit")
}

func TestIngest_ExactlyAtLimit(t *testing.T) {
	in := NewIngestor(16, 0, "")
	_, err := in.Ingest(context.Background(), Upload{FileName: "ok.csv", Body: strings.NewReader("a;b\n1;2\n3;4\n5;6\n")})
	require.NoError(t, err)
}

func TestIngest_UnsupportedFormat(t *testing.T) {
	in := NewIngestor(0, 0, "")
	_, err := in.Ingest(context.Background(), Upload{
		FileName:    "history.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF-1.4"),
	})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestIngest_MislabeledUpload(t *testing.T) {
	in := NewIngestor(0, 0, "")
	res, err := in.Ingest(context.Background(), Upload{
		FileName:    "export.bin",
		ContentType: "application/json",
		Body:        strings.NewReader(`[{"name":"Ana","date":"2024-03-05","time":"10:00"}]`),
	})
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, res.Job.Format)
	assert.Equal(t, 1, res.Job.TotalRows)
}

func TestIngest_EmptyPayload(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		contentType string
		wantErr     error
	}{
		{"delimited has zero rows", "empty.csv", "text/csv", nil},
		{"delimited by content type", "", "text/csv", nil},
		{"json", "empty.json", "", ErrEmptyPayload},
		{"xlsx", "empty.xlsx", "", ErrEmptyPayload},
		{"xls", "empty.xls", "", ErrEmptyPayload},
		{"unknown format wins over emptiness", "empty.pdf", "application/pdf", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewIngestor(0, 0, "")
			res, err := in.Ingest(context.Background(), Upload{
				FileName:    tt.fileName,
				ContentType: tt.contentType,
				Body:        strings.NewReader(""),
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, FormatDelimited, res.Job.Format)
			assert.Zero(t, res.Job.TotalRows)
			assert.Empty(t, res.Job.Columns)
			assert.Empty(t, res.Rows)
		})
	}
}

func TestIngest_HeaderOnlyHasZeroRows(t *testing.T) {
	in := NewIngestor(0, 0, "")
	res, err := in.Ingest(context.Background(), Upload{FileName: "h.csv", Body: strings.NewReader("Klijent;Datum;Vrijeme\n")})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Job.TotalRows)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Preview)
}

func TestIngest_PreviewLimited(t *testing.T) {
	in := NewIngestor(0, 3, "")
	lines := []string{"name;date;time"}
	for i := 0; i < 8; i++ {
		lines = append(lines, "Ana;2024-03-05;10:00")
	}
	res, err := in.Ingest(context.Background(), Upload{FileName: "p.csv", Body: strings.NewReader(strings.Join(lines, "\n"))})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Job.TotalRows)
	assert.Len(t, res.Preview, 3)
}

func TestIngest_XLSX(t *testing.T) {
	payload := xlsxFixture(t, [][]any{
		{"Customer", "Date", "Start", "Treatment", "Duration"},
		{"Ana Horvat", "2024-03-05", "10:00", "Šišanje", 45},
	})
	res, err := NewIngestor(0, 0, "").Ingest(context.Background(), Upload{FileName: "book.xlsx", Body: bytes.NewReader(payload)})
	require.NoError(t, err)

	assert.Equal(t, FormatXLSX, res.Job.Format)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "45", res.Rows[0].Raw["Duration"])
	assert.Equal(t, "Treatment", res.Mapping[FieldServices])
	assert.Equal(t, "Duration", res.Mapping[FieldDuration])
}

func TestIngest_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewIngestor(0, 0, "").Ingest(ctx, Upload{FileName: "a.csv", Body: strings.NewReader("a;b\n1;2\n")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSuggestMapping(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    ColumnMapping
	}{
		{
			name:    "english",
			columns: []string{"Client Name", "E-mail", "Phone Number", "Date", "Time", "Services", "Duration (min)", "Notes"},
			want: ColumnMapping{
				FieldClientName:  "Client Name",
				FieldClientEmail: "E-mail",
				FieldClientPhone: "Phone Number",
				FieldDate:        "Date",
				FieldTime:        "Time",
				FieldServices:    "Services",
				FieldDuration:    "Duration (min)",
				FieldNotes:       "Notes",
			},
		},
		{
			name:    "croatian with diacritics",
			columns: []string{"Ime i prezime", "Mobitel", "Datum termina", "Vrijeme", "Usluga", "Bilješka"},
			want: ColumnMapping{
				FieldClientName:  "Ime i prezime",
				FieldClientPhone: "Mobitel",
				FieldDate:        "Datum termina",
				FieldTime:        "Vrijeme",
				FieldServices:    "Usluga",
				FieldNotes:       "Bilješka",
			},
		},
		{
			name:    "unknown headers",
			columns: []string{"foo", "bar"},
			want:    ColumnMapping{},
		},
		{
			name:    "first matching column wins",
			columns: []string{"Date", "Datum"},
			want:    ColumnMapping{FieldDate: "Date"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestMapping(tt.columns))
		})
	}
}

func TestCleanHeader(t *testing.T) {
	got := cleanHeader([]string{" Name ", "", "name", "Name_2", "x"}, 6)
	assert.Equal(t, []string{"Name", "column_2", "name_2", "Name_2_2", "x", "column_6"}, got)
}
