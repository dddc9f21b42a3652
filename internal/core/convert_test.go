package core

import (
	"reflect"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	march5 := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		input  string
		want   time.Time
		wantOk bool
	}{
		// ISO
		{"iso", "2024-03-05", march5, true},
		{"iso slashes", "2024/03/05", march5, true},
		{"compact", "20240305", march5, true},

		// European
		{"dotted", "05.03.2024", march5, true},
		{"dotted no padding", "5.3.2024", march5, true},
		{"croatian trailing dot", "5.3.2024.", march5, true},
		{"croatian spaced", "5. 3. 2024.", march5, true},
		{"dotted two digit year", "05.03.24", march5, true},

		// US
		{"us slashes", "03/05/2024", march5, true},
		{"us no padding", "3/5/2024", march5, true},
		{"us dashes", "3-5-2024", march5, true},

		// Named months
		{"short month", "Mar 5, 2024", march5, true},
		{"long month", "March 5, 2024", march5, true},
		{"day first month", "5 Mar 2024", march5, true},

		// Spreadsheet serial
		{"excel serial", "45356", march5, true},

		// Invalid
		{"empty", "", time.Time{}, false},
		{"whitespace", "   ", time.Time{}, false},
		{"not a date", "yesterday", time.Time{}, false},
		{"impossible day", "2024-02-30", time.Time{}, false},
		{"small number", "42", time.Time{}, false},
		{"with time", "2024-03-05 10:00", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantOk {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOk)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input  string
		want   time.Duration
		wantOk bool
	}{
		{"10:00", 10 * time.Hour, true},
		{"09:30", 9*time.Hour + 30*time.Minute, true},
		{"9:30:15", 9*time.Hour + 30*time.Minute + 15*time.Second, true},
		{"9.30", 9*time.Hour + 30*time.Minute, true},
		{"2:30 PM", 14*time.Hour + 30*time.Minute, true},
		{"2:30pm", 14*time.Hour + 30*time.Minute, true},
		{"10:00 a.m.", 10 * time.Hour, true},
		{"12 AM", 0, true},
		{"3PM", 15 * time.Hour, true},
		{"", 0, false},
		{"25:00", 0, false},
		{"10:75", 0, false},
		{"noon", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTimeOfDay(tt.input)
			if ok != tt.wantOk {
				t.Fatalf("ParseTimeOfDay(%q) ok = %v, want %v", tt.input, ok, tt.wantOk)
			}
			if got != tt.want {
				t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDurationMinutes(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOk bool
	}{
		{"45", 45, true},
		{" 60 ", 60, true},
		{"0", 0, false},
		{"-15", 0, false},
		{"1.5", 0, false},
		{"30min", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseDurationMinutes(tt.input)
		if got != tt.want || ok != tt.wantOk {
			t.Errorf("ParseDurationMinutes(%q) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOk)
		}
	}
}

func TestSplitServices(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", "Šišanje", []string{"Šišanje"}},
		{"mixed separators", "Šišanje, Pranje kose + Feniranje|Manikura", []string{"Šišanje", "Pranje kose", "Feniranje", "Manikura"}},
		{"newlines", "Šišanje\nBojanje", []string{"Šišanje", "Bojanje"}},
		{"duplicates by normalized name", "Šišanje; ŠIŠANJE ;šišanje", []string{"Šišanje"}},
		{"only separators", " , ; ", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitServices(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitServices(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := map[string]string{
		" Ana.Horvat@Example.COM ": "ana.horvat@example.com",
		"mailto:Marko@salon.hr":    "marko@salon.hr",
		"ana":                      "",
		"ana horvat@example.com":   "",
		"":                         "",
	}
	for input, want := range tests {
		if got := NormalizeEmail(input); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"+385 91 234 5678":  "+385912345678",
		"00385 91 234 5678": "+385912345678",
		"091/234-567":       "091234567",
		"(091) 234 567":     "091234567",
		"12345":             "",
		"1234567890123456":  "",
		"":                  "",
	}
	for input, want := range tests {
		if got := NormalizePhone(input); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCleanCell(t *testing.T) {
	tests := map[string]string{
		`="0912345678"`: "0912345678",
		`=SUM(A1)`:      "SUM(A1)",
		`  "Ana"  `:     "Ana",
		"'Marko'":       "Marko",
		"plain":         "plain",
	}
	for input, want := range tests {
		if got := CleanCell(input); got != want {
			t.Errorf("CleanCell(%q) = %q, want %q", input, got, want)
		}
	}
}
