package search

import (
	"regexp"
	"strings"

	"Skymarshal/pkg/errors"
)

// Keyword grammar:
//
//	"exact phrase"  case-sensitive substring
//	\bword\b        case-insensitive whole-word match
//	-token          negative: excludes matching items
//	+token          required: excludes non-matching items
//	token           case-insensitive substring
//
// The - and + prefixes apply the same phrase/word/plain sub-parsing to the
// rest of the token.
type matchClass int

const (
	matchPlain matchClass = iota
	matchPhrase
	matchWord
)

type pattern struct {
	class matchClass
	text  string
	re    *regexp.Regexp
}

func (p pattern) matches(text string) bool {
	switch p.class {
	case matchPhrase:
		return strings.Contains(text, p.text)
	case matchWord:
		return p.re.MatchString(text)
	default:
		return strings.Contains(strings.ToLower(text), strings.ToLower(p.text))
	}
}

// keywordQuery is the parsed form of a keyword list. An item passes iff
// every negative fails, every required matches, and (when any plain
// positive exists) at least one positive matches.
type keywordQuery struct {
	negative []pattern
	required []pattern
	positive []pattern
}

func (q keywordQuery) empty() bool {
	return len(q.negative) == 0 && len(q.required) == 0 && len(q.positive) == 0
}

func (q keywordQuery) matches(text string) bool {
	for _, p := range q.negative {
		if p.matches(text) {
			return false
		}
	}
	for _, p := range q.required {
		if !p.matches(text) {
			return false
		}
	}
	if len(q.positive) == 0 {
		return true
	}
	for _, p := range q.positive {
		if p.matches(text) {
			return true
		}
	}
	return false
}

func parseKeywords(keywords []string) (keywordQuery, error) {
	var q keywordQuery
	for _, raw := range keywords {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		switch {
		case strings.HasPrefix(tok, "-"):
			p, err := parsePattern(tok[1:])
			if err != nil {
				return q, err
			}
			q.negative = append(q.negative, p)
		case strings.HasPrefix(tok, "+"):
			p, err := parsePattern(tok[1:])
			if err != nil {
				return q, err
			}
			q.required = append(q.required, p)
		default:
			p, err := parsePattern(tok)
			if err != nil {
				return q, err
			}
			q.positive = append(q.positive, p)
		}
	}
	return q, nil
}

func parsePattern(tok string) (pattern, error) {
	if tok == "" {
		return pattern{}, errors.New(errors.Validation, "empty keyword operator")
	}
	if len(tok) >= 2 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) {
		return pattern{class: matchPhrase, text: tok[1 : len(tok)-1]}, nil
	}
	if len(tok) > 4 && strings.HasPrefix(tok, `\b`) && strings.HasSuffix(tok, `\b`) {
		inner := tok[2 : len(tok)-2]
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(inner) + `\b`)
		if err != nil {
			return pattern{}, errors.Wrap(err, errors.Validation, "bad word-boundary keyword")
		}
		return pattern{class: matchWord, text: inner, re: re}, nil
	}
	return pattern{class: matchPlain, text: tok}, nil
}
