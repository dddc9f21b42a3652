package core

// matcher.go resolves free-text service names against a salon's catalog.
//
// Metric: weighted Levenshtein distance over runes of the normalized names,
// turned into a similarity with 1 - d / max(len(a), len(b)). Insertions,
// deletions and substitutions cost 1, except substituting two runes that
// share a base letter once diacritics are removed (s/š, c/č/ć, z/ž, d/đ),
// which costs 0.1. "Sisanje" against "Šišanje" therefore scores 0.971, while
// "Manikura" against "Manikure" scores 0.875.

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMatchThreshold is the minimum similarity for a fuzzy match.
const DefaultMatchThreshold = 0.90

// diacriticSubstitutionCost is the cost of swapping letters that differ
// only by a diacritic.
const diacriticSubstitutionCost = 0.1

// letters that do not decompose under NFD
var strokeLetters = strings.NewReplacer(
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
	"ø", "o", "Ø", "O",
	"ß", "ss",
)

// NormalizeName case-folds, trims and collapses whitespace.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// foldDiacritics strips combining marks, so "Šišanje" becomes "Sisanje".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strokeLetters.Replace(folded)
}

// foldRune returns the base letter of r.
func foldRune(r rune) rune {
	folded := []rune(foldDiacritics(string(r)))
	if len(folded) != 1 {
		return r
	}
	return folded[0]
}

// Similarity scores two service names in [0,1]. Both names are normalized
// first; identical names score 1.
func Similarity(a, b string) float64 {
	ra := []rune(NormalizeName(a))
	rb := []rune(NormalizeName(b))

	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - weightedDistance(ra, rb)/float64(longest)
}

func weightedDistance(a, b []rune) float64 {
	fa := make([]rune, len(a))
	for i, r := range a {
		fa[i] = foldRune(r)
	}
	fb := make([]rune, len(b))
	for i, r := range b {
		fb[i] = foldRune(r)
	}

	prev := make([]float64, len(b)+1)
	curr := make([]float64, len(b)+1)
	for j := range prev {
		prev[j] = float64(j)
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = float64(i)
		for j := 1; j <= len(b); j++ {
			sub := 1.0
			switch {
			case a[i-1] == b[j-1]:
				sub = 0
			case fa[i-1] == fb[j-1]:
				sub = diacriticSubstitutionCost
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// ServiceMatcher maps imported service names to catalog services.
type ServiceMatcher struct {
	threshold float64
}

// NewServiceMatcher creates a matcher. A threshold outside (0,1] falls back
// to DefaultMatchThreshold.
func NewServiceMatcher(threshold float64) *ServiceMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}
	return &ServiceMatcher{threshold: threshold}
}

// ServiceResolution is the per-job result of matching, keyed by normalized
// imported name.
type ServiceResolution struct {
	byName  map[string]ServiceMapping
	catalog map[string]CatalogService
}

// Lookup returns the mapping for an imported name.
func (r *ServiceResolution) Lookup(name string) (ServiceMapping, bool) {
	m, ok := r.byName[NormalizeName(name)]
	return m, ok
}

// Service returns the catalog entry a mapping points at.
func (r *ServiceResolution) Service(id string) (CatalogService, bool) {
	s, ok := r.catalog[id]
	return s, ok
}

// Summary lists every mapping sorted by imported name with match counts.
func (r *ServiceResolution) Summary() ServiceMappingSummary {
	summary := ServiceMappingSummary{Mappings: make([]ServiceMapping, 0, len(r.byName))}
	for _, m := range r.byName {
		summary.Mappings = append(summary.Mappings, m)
		if m.Kind == MatchNone {
			summary.Unmatched++
		} else {
			summary.Matched++
		}
	}
	sort.Slice(summary.Mappings, func(i, j int) bool {
		return NormalizeName(summary.Mappings[i].ImportedName) < NormalizeName(summary.Mappings[j].ImportedName)
	})
	return summary
}

// Resolve scores every distinct token once. With autoMap false every token
// is left unmatched.
func (m *ServiceMatcher) Resolve(catalog []CatalogService, tokens []string, autoMap bool) *ServiceResolution {
	res := &ServiceResolution{
		byName:  make(map[string]ServiceMapping, len(tokens)),
		catalog: make(map[string]CatalogService, len(catalog)),
	}
	for _, svc := range catalog {
		res.catalog[svc.ID] = svc
	}

	for _, tok := range tokens {
		key := NormalizeName(tok)
		if key == "" {
			continue
		}
		if _, done := res.byName[key]; done {
			continue
		}
		if !autoMap {
			res.byName[key] = ServiceMapping{ImportedName: tok, Kind: MatchNone}
			continue
		}
		res.byName[key] = m.match(catalog, tok)
	}
	return res
}

type candidate struct {
	svc   CatalogService
	name  string
	score float64
}

// better orders candidates: higher score, shorter name, lexical name, id.
func (c candidate) better(o candidate) bool {
	if c.score != o.score {
		return c.score > o.score
	}
	lc, lo := len([]rune(c.name)), len([]rune(o.name))
	if lc != lo {
		return lc < lo
	}
	if c.name != o.name {
		return c.name < o.name
	}
	return c.svc.ID < o.svc.ID
}

func (m *ServiceMatcher) match(catalog []CatalogService, token string) ServiceMapping {
	key := NormalizeName(token)

	var best *candidate
	for _, svc := range catalog {
		name := NormalizeName(svc.Name)
		score := 1.0
		if name != key {
			score = Similarity(key, name)
		}
		c := candidate{svc: svc, name: name, score: score}
		if best == nil || c.better(*best) {
			best = &c
		}
	}

	switch {
	case best == nil:
		return ServiceMapping{ImportedName: token, Kind: MatchNone}
	case best.name == key:
		return ServiceMapping{ImportedName: token, ServiceID: best.svc.ID, ServiceName: best.svc.Name, Kind: MatchExact, Score: 1}
	case best.score >= m.threshold:
		return ServiceMapping{ImportedName: token, ServiceID: best.svc.ID, ServiceName: best.svc.Name, Kind: MatchFuzzy, Score: best.score}
	default:
		return ServiceMapping{ImportedName: token, Kind: MatchNone}
	}
}
