package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"file with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "ime;datum"...), "ime;datum"},
		{"file without BOM", []byte("ime;datum"), "ime;datum"},
		{"empty file", []byte{}, ""},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"partial BOM", []byte{0xEF, 0xBB, 'a'}, string([]byte{0xEF, 0xBB, 'a'})},
		{"short input", []byte("a"), "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newBOMSkippingReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestReadPayload(t *testing.T) {
	t.Run("at limit", func(t *testing.T) {
		data, err := readPayload(strings.NewReader("12345"), 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "12345" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("one byte over", func(t *testing.T) {
		_, err := readPayload(strings.NewReader("123456"), 5)
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("expected ErrFileTooLarge, got %v", err)
		}
		var sizeErr *FileSizeError
		if !errors.As(err, &sizeErr) || sizeErr.Limit != 5 {
			t.Errorf("expected FileSizeError with limit 5, got %v", err)
		}
	})

	t.Run("stops reading early", func(t *testing.T) {
		src := strings.NewReader(strings.Repeat("x", 1000))
		_, err := readPayload(src, 10)
		if !errors.Is(err, ErrFileTooLarge) {
			t.Fatalf("expected ErrFileTooLarge, got %v", err)
		}
		if src.Len() != 1000-11 {
			t.Errorf("consumed %d bytes, want 11", 1000-src.Len())
		}
	})
}

func TestTextReader(t *testing.T) {
	t.Run("utf-8 passes through", func(t *testing.T) {
		got, _ := io.ReadAll(textReader([]byte("Šišanje;Žarko"), charmap.Windows1250))
		if string(got) != "Šišanje;Žarko" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("windows-1250 is decoded", func(t *testing.T) {
		encoded, err := charmap.Windows1250.NewEncoder().Bytes([]byte("Šišanje;Žarko"))
		if err != nil {
			t.Fatal(err)
		}
		got, _ := io.ReadAll(textReader(encoded, charmap.Windows1250))
		if string(got) != "Šišanje;Žarko" {
			t.Errorf("got %q", got)
		}
	})
}

func TestLookupCharset(t *testing.T) {
	if lookupCharset("ISO-8859-2") != charmap.ISO8859_2 {
		t.Error("iso-8859-2 not resolved")
	}
	if lookupCharset("bogus") != charmap.Windows1250 {
		t.Error("unknown charset should fall back to windows-1250")
	}
}
