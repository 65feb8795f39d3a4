package normalize

import (
	"regexp"
)

// AbbrevRule expands one abbreviation pattern
type AbbrevRule struct {
	Pattern     string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement" mapstructure:"replacement"`
}

// DefaultAbbrevRules are the common short forms of Portuguese local
// government names. Patterns run over normalized (lower case) text.
var DefaultAbbrevRules = []AbbrevRule{
	{`\bu\.?\s?f\.?\s+`, "uniao de freguesias "},
	{`\bj\.?\s?f\.?\s+`, "junta de freguesia "},
	{`\bc\.?\s?m\.?\s+`, "camara municipal "},
	{`\bsta\.?\s`, "santa "},
	{`\bsto\.?\s`, "santo "},
	{`\bs\.\s?`, "sao "},
	{`\bn\.?\s?a\.?\s?sra\.?\s`, "nossa senhora "},
}

// AbbrevRules expands abbreviations in the order they were configured
type AbbrevRules struct {
	rules []compiledRule
}

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

// NewAbbrevRules compiles the rules; nil rules use DefaultAbbrevRules
func NewAbbrevRules(rules []AbbrevRule) (*AbbrevRules, error) {
	if rules == nil {
		rules = DefaultAbbrevRules
	}
	ar := &AbbrevRules{}
	for _, r := range rules {
		re, err := regexp.Compile(`(?i)` + r.Pattern)
		if err != nil {
			return nil, err
		}
		ar.rules = append(ar.rules, compiledRule{re: re, replacement: r.Replacement})
	}
	return ar, nil
}

// Expand normalizes text and applies every rule in order
func (ar *AbbrevRules) Expand(text string) string {
	result := Text(text)
	if ar == nil {
		return result
	}
	for _, r := range ar.rules {
		result = r.re.ReplaceAllString(result, r.replacement)
	}
	return Text(result)
}
