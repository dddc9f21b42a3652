package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "pranje kose", NormalizeName("  Pranje   KOSE "))
	assert.Equal(t, "šišanje", NormalizeName("ŠIŠANJE"))
	assert.Equal(t, "", NormalizeName(" \t "))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Šišanje", "šišanje", 1},
		{"Sisanje", "Šišanje", 1 - 0.2/7},
		{"Manikura", "Manikure", 0.875},
		{"Trajna ondulacja", "Trajna ondulacija", 1 - 1.0/17},
		{"Cesljanje", "Češljanje", 1 - 0.2/9},
		{"Dorada", "Đorađa", 1 - 0.2/6},
		{"Masaža", "Pedikura", 0},
		{"", "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if tt.want == 0 {
				assert.Less(t, got, 0.5)
				return
			}
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.InDelta(t, got, Similarity(tt.b, tt.a), 1e-9, "similarity must be symmetric")
		})
	}
}

func salonCatalog() []CatalogService {
	return []CatalogService{
		{ID: "svc-haircut", Name: "Šišanje", DurationMinutes: 30},
		{ID: "svc-mani", Name: "Manikura", DurationMinutes: 45},
		{ID: "svc-perm", Name: "Trajna ondulacija", DurationMinutes: 120},
		{ID: "svc-color", Name: "Bojanje kose", DurationMinutes: 90},
	}
}

func TestServiceMatcher_Resolve(t *testing.T) {
	m := NewServiceMatcher(DefaultMatchThreshold)
	res := m.Resolve(salonCatalog(), []string{"MANIKURA", "Sisanje", "Manikure", "Depilacija"}, true)

	exact, ok := res.Lookup("manikura")
	require.True(t, ok)
	assert.Equal(t, MatchExact, exact.Kind)
	assert.Equal(t, "svc-mani", exact.ServiceID)
	assert.Equal(t, "MANIKURA", exact.ImportedName)

	fuzzy, ok := res.Lookup("Sisanje")
	require.True(t, ok)
	assert.Equal(t, MatchFuzzy, fuzzy.Kind)
	assert.Equal(t, "svc-haircut", fuzzy.ServiceID)
	assert.Equal(t, "Šišanje", fuzzy.ServiceName)
	assert.InDelta(t, 0.971, fuzzy.Score, 0.001)

	near, ok := res.Lookup("Manikure")
	require.True(t, ok)
	assert.Equal(t, MatchNone, near.Kind, "0.875 is below the threshold")
	assert.Empty(t, near.ServiceID)
	assert.Zero(t, near.Score)

	none, ok := res.Lookup("depilacija")
	require.True(t, ok)
	assert.Equal(t, MatchNone, none.Kind)

	svc, ok := res.Service("svc-haircut")
	require.True(t, ok)
	assert.Equal(t, 30, svc.DurationMinutes)
}

func TestServiceMatcher_DifferentWordIsNotMatched(t *testing.T) {
	assert.Less(t, Similarity("Strizanje", "Šišanje"), 0.7)

	res := NewServiceMatcher(DefaultMatchThreshold).Resolve(salonCatalog(), []string{"Strizanje"}, true)
	m, ok := res.Lookup("Strizanje")
	require.True(t, ok)
	assert.Equal(t, MatchNone, m.Kind)
	assert.Empty(t, m.ServiceID)
}

func TestServiceMatcher_Summary(t *testing.T) {
	m := NewServiceMatcher(0)
	res := m.Resolve(salonCatalog(), []string{"sisanje", "Bojanje kose", "Nokti"}, true)

	summary := res.Summary()
	assert.Equal(t, 2, summary.Matched)
	assert.Equal(t, 1, summary.Unmatched)

	names := make([]string, 0, len(summary.Mappings))
	for _, mp := range summary.Mappings {
		names = append(names, mp.ImportedName)
	}
	assert.Equal(t, []string{"Bojanje kose", "Nokti", "sisanje"}, names)
}

func TestServiceMatcher_AutoMapDisabled(t *testing.T) {
	m := NewServiceMatcher(DefaultMatchThreshold)
	res := m.Resolve(salonCatalog(), []string{"Šišanje", "Manikura"}, false)

	summary := res.Summary()
	assert.Equal(t, 0, summary.Matched)
	assert.Equal(t, 2, summary.Unmatched)
	for _, mp := range summary.Mappings {
		assert.Equal(t, MatchNone, mp.Kind)
	}
}

func TestServiceMatcher_Deterministic(t *testing.T) {
	catalog := []CatalogService{
		{ID: "b", Name: "Abce"},
		{ID: "a", Name: "Abcd"},
		{ID: "c", Name: "Abcd"},
	}
	m := NewServiceMatcher(0.7)

	first := m.Resolve(catalog, []string{"Abcx", "abcd"}, true).Summary()
	for i := 0; i < 20; i++ {
		again := m.Resolve(catalog, []string{"Abcx", "abcd"}, true).Summary()
		require.Equal(t, first, again)
	}

	res := m.Resolve(catalog, []string{"Abcx", "abcd"}, true)

	tie, _ := res.Lookup("Abcx")
	assert.Equal(t, MatchFuzzy, tie.Kind)
	assert.Equal(t, "a", tie.ServiceID, "equal score and length falls back to name, then id")

	exact, _ := res.Lookup("abcd")
	assert.Equal(t, MatchExact, exact.Kind)
	assert.Equal(t, "a", exact.ServiceID)
}

func TestServiceMatcher_PrefersShorterName(t *testing.T) {
	// "kose" scores 0.75 against both names below.
	catalog := []CatalogService{
		{ID: "long", Name: "kosa"},
		{ID: "short", Name: "kos"},
	}
	res := NewServiceMatcher(0.7).Resolve(catalog, []string{"kose"}, true)

	m, _ := res.Lookup("kose")
	assert.Equal(t, "short", m.ServiceID)
}

func TestServiceMatcher_EmptyCatalog(t *testing.T) {
	res := NewServiceMatcher(DefaultMatchThreshold).Resolve(nil, []string{"Šišanje"}, true)
	m, ok := res.Lookup("Šišanje")
	require.True(t, ok)
	assert.Equal(t, MatchNone, m.Kind)
}
