package news

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EntityExtractor finds organization and product names in text. Returned
// entities are lowercase.
type EntityExtractor interface {
	Entities(text string) []string
}

// HeuristicExtractor treats runs of capitalized words, all-caps tickers and
// cashtags as organization or product mentions.
type HeuristicExtractor struct{}

// words that start sentences or headlines without naming anything
var nonEntities = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "by": {}, "for": {},
	"from": {}, "how": {}, "i": {}, "if": {}, "in": {}, "is": {}, "it": {},
	"its": {}, "of": {}, "on": {}, "or": {}, "the": {}, "this": {}, "to": {},
	"what": {}, "when": {}, "where": {}, "who": {}, "why": {}, "with": {},
	"after": {}, "before": {}, "here": {}, "these": {}, "they": {}, "we": {},
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {}, "friday": {},
	"saturday": {}, "sunday": {}, "january": {}, "february": {}, "march": {},
	"april": {}, "may": {}, "june": {}, "july": {}, "august": {},
	"september": {}, "october": {}, "november": {}, "december": {},
}

func (HeuristicExtractor) Entities(text string) []string {
	var (
		out  []string
		run  []string
		seen = map[string]struct{}{}
	)
	flush := func() {
		if len(run) == 0 {
			return
		}
		e := strings.ToLower(strings.Join(run, " "))
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			out = append(out, e)
		}
		run = run[:0]
	}

	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return r != '$' && r != '&' && (unicode.IsPunct(r) || unicode.IsSymbol(r))
		})
		// possessives name the owner
		word = strings.TrimSuffix(strings.TrimSuffix(word, "'s"), "’s")
		if tag, ok := strings.CutPrefix(word, "$"); ok && tag != "" {
			flush()
			run = append(run, tag)
			flush()
			continue
		}
		if !capitalized(word) {
			flush()
			continue
		}
		if _, skip := nonEntities[strings.ToLower(word)]; skip && len(run) == 0 {
			continue
		}
		run = append(run, word)
		// a run ends at clause punctuation
		if strings.ContainsAny(field[len(field)-1:], ",.;:!?") {
			flush()
		}
	}
	flush()
	return out
}

func capitalized(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	if unicode.IsUpper(r) {
		return true
	}
	// names such as 3M
	return unicode.IsDigit(r) && hasUpper(word)
}

func hasUpper(s string) bool {
	return strings.IndexFunc(s, unicode.IsUpper) >= 0
}
