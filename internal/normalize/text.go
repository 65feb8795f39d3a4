package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NFKD so compatibility characters fold too ("º" -> "o", "ª" -> "a")
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var reSpaces = regexp.MustCompile(`\s+`)

// DefaultPrefixes are the entity name prefixes removed before registry lookup
var DefaultPrefixes = []string{
	`^\s*(municipio|camara municipal|cm|c m)(\s+(de|do|da|dos|das))?\s+`,
	`^\s*(freguesia|junta de freguesia|uniao de freguesias|uniao das freguesias)(\s+(de|do|da|dos|das))?\s+`,
}

// Text canonicalizes free text: trim, strip diacritics, collapse whitespace,
// lower case. Blank input yields "".
func Text(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = StripAccents(s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// StripAccents removes combining marks after compatibility decomposition
func StripAccents(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// Compact removes every whitespace rune, used for identity keys
func Compact(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Prefixes is a compiled, ordered list of prefix patterns
type Prefixes struct {
	patterns []*regexp.Regexp
}

// CompilePrefixes compiles prefix patterns case-insensitively. Patterns are
// applied to already normalized text, so they should be written unaccented.
func CompilePrefixes(patterns []string) (*Prefixes, error) {
	p := &Prefixes{}
	for _, pattern := range patterns {
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			return nil, err
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// MustCompilePrefixes is CompilePrefixes that panics on a bad pattern
func MustCompilePrefixes(patterns []string) *Prefixes {
	p, err := CompilePrefixes(patterns)
	if err != nil {
		panic(err)
	}
	return p
}

// Strip normalizes s and removes every configured prefix in order
func (p *Prefixes) Strip(s string) string {
	s = Text(s)
	if p == nil {
		return s
	}
	for _, re := range p.patterns {
		s = re.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// StripPrefixes is a convenience wrapper for one-off calls
func StripPrefixes(s string, patterns []string) string {
	p, err := CompilePrefixes(patterns)
	if err != nil {
		return Text(s)
	}
	return p.Strip(s)
}

// ContainsAny reports whether the normalized text contains any of the
// normalized keywords
func ContainsAny(text string, keywords []string) bool {
	text = Text(text)
	if text == "" {
		return false
	}
	for _, kw := range keywords {
		kw = Text(kw)
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// In reports whether the normalized value equals any normalized option
func In(value string, options []string) bool {
	value = Text(value)
	for _, opt := range options {
		if Text(opt) == value {
			return true
		}
	}
	return false
}
