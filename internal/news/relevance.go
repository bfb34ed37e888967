package news

import (
	"strings"
	"unicode"

	"stocktracker/internal/model"
)

// FinanceKeywords mark an article as market news regardless of who it names.
var FinanceKeywords = []string{"stock", "shares", "market", "investor", "finance", "earnings", "revenue", "profit", "loss"}

// corporate designators that do not identify a company on their own
var corporateSuffixes = map[string]struct{}{
	"the": {}, "inc": {}, "incorporated": {}, "corp": {}, "corporation": {},
	"co": {}, "company": {}, "ltd": {}, "limited": {}, "plc": {}, "llc": {},
	"group": {}, "holdings": {}, "holding": {}, "sa": {}, "ag": {}, "nv": {},
	"asa": {}, "se": {}, "class": {},
}

// RelevanceFilter decides whether a candidate concerns the instrument.
// An article is relevant when it names the company or symbol, or when it
// mentions any finance keyword. With a nil Extractor the name check is a
// plain substring match.
type RelevanceFilter struct {
	Extractor EntityExtractor
	Keywords  []string
}

func NewRelevanceFilter(extractor EntityExtractor) *RelevanceFilter {
	return &RelevanceFilter{Extractor: extractor, Keywords: FinanceKeywords}
}

func (f *RelevanceFilter) IsRelevant(a model.NewsArticle, companyName string, symbol model.Symbol) bool {
	text := a.Title + " " + a.Description
	content := strings.ToLower(text)
	return f.namesCompany(text, content, companyName, symbol) || f.hasKeyword(content)
}

func (f *RelevanceFilter) namesCompany(text, content, companyName string, symbol model.Symbol) bool {
	terms := NameTokens(companyName)
	terms = append(terms, strings.ToLower(string(symbol)))
	if base := strings.ToLower(symbol.Base()); base != terms[len(terms)-1] {
		terms = append(terms, base)
	}

	if f.Extractor == nil {
		for _, term := range terms {
			if term != "" && strings.Contains(content, term) {
				return true
			}
		}
		return false
	}

	words := map[string]struct{}{}
	for _, e := range f.Extractor.Entities(text) {
		words[e] = struct{}{}
		for _, w := range strings.Fields(e) {
			words[w] = struct{}{}
		}
	}
	for _, term := range terms {
		if _, ok := words[term]; ok && term != "" {
			return true
		}
	}
	return false
}

func (f *RelevanceFilter) hasKeyword(content string) bool {
	for _, kw := range f.Keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// NameTokens lowercases a company name and drops corporate designators
// and one-letter words: "Apple Inc." gives ["apple"].
func NameTokens(companyName string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(strings.ToLower(companyName), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	}) {
		if _, skip := corporateSuffixes[w]; skip || len(w) < 2 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
