package identity

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultUnassigned is the label used for issues without an assignee when
// none is configured.
const DefaultUnassigned = "Não atribuído"

// RemoveAccents strips combining marks, e.g. "João" -> "Joao".
func RemoveAccents(text string) string {
	if text == "" {
		return text
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return result
}

// Normalizer reduces display names to canonical labels. Its Unassigned label
// is never normalized.
type Normalizer struct {
	Unassigned string
}

func NewNormalizer(unassigned string) Normalizer {
	if unassigned == "" {
		unassigned = DefaultUnassigned
	}
	return Normalizer{Unassigned: unassigned}
}

// FirstName returns the capitalized, accent-free first token of a display
// name.
func (n Normalizer) FirstName(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) == 0 || fullName == n.Unassigned {
		return n.Unassigned
	}
	return cases.Title(language.Und).String(RemoveAccents(parts[0]))
}

// ShortName keeps the first two tokens of a display name.
func (n Normalizer) ShortName(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) == 0 || fullName == n.Unassigned {
		return n.Unassigned
	}
	if len(parts) >= 2 {
		return parts[0] + " " + parts[1]
	}
	return parts[0]
}

type observation struct {
	name string
	at   time.Time
}

// BuildLatestIdentityMap maps each normalized first name to the short form of
// the most recently observed full name for it. Rows with an empty name or a
// zero date are ignored; on equal dates the later row wins.
func BuildLatestIdentityMap[T any](n Normalizer, rows []T, name func(T) string, at func(T) time.Time) map[string]string {
	mapping := map[string]string{}
	if len(rows) == 0 || name == nil || at == nil {
		return mapping
	}

	observations := make([]observation, 0, len(rows))
	for _, row := range rows {
		n, ts := strings.TrimSpace(name(row)), at(row)
		if n == "" || ts.IsZero() {
			continue
		}
		observations = append(observations, observation{name: n, at: ts})
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].at.Before(observations[j].at)
	})

	for _, o := range observations {
		mapping[n.FirstName(o.name)] = n.ShortName(o.name)
	}

	return mapping
}

// Resolver turns raw assignee names into canonical developer labels.
type Resolver struct {
	names   Normalizer
	mapping map[string]string
}

func NewResolver(names Normalizer, mapping map[string]string) *Resolver {
	if mapping == nil {
		mapping = map[string]string{}
	}
	return &Resolver{names: names, mapping: mapping}
}

// Resolve returns the canonical label for name, falling back to its
// normalized first name.
func (r *Resolver) Resolve(name string) string {
	first := r.names.FirstName(name)
	if canonical, ok := r.mapping[first]; ok {
		return canonical
	}
	return first
}
