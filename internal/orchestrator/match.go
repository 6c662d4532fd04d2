package orchestrator

import (
	"strings"
	"unicode"
)

// Words too generic to identify what a clarification question is about.
// The matcher must stay conservative: a missed match only leaves a
// question open, a false match silently swallows it.
var matchStopwords = map[string]bool{
	"what": true, "whats": true, "which": true, "when": true, "where": true,
	"does": true, "this": true, "that": true, "have": true, "has": true,
	"the": true, "and": true, "for": true, "with": true, "about": true,
	"listing": true, "item": true, "know": true, "tell": true, "many": true,
	"much": true, "your": true, "you": true, "there": true, "here": true,
	"from": true, "would": true, "could": true, "should": true, "please": true,
	"is": true, "are": true, "was": true, "any": true, "how": true,
}

// answersQuestion reports whether an edit to a listing plausibly answers a
// pending clarification question about it. The rule is exact keyword
// containment: a significant word of the question must show up either in
// text the edit added or in the name of an edited metadata field.
func answersQuestion(question, addedText string, editedKeys []string) bool {
	keywords := significantWords(question)
	if len(keywords) == 0 {
		return false
	}

	added := make(map[string]bool)
	for _, w := range tokenize(addedText) {
		added[w] = true
	}

	normalizedKeys := make([]string, 0, len(editedKeys))
	for _, key := range editedKeys {
		normalizedKeys = append(normalizedKeys, strings.Join(tokenize(key), " "))
	}

	for _, kw := range keywords {
		if added[kw] {
			return true
		}
		for _, key := range normalizedKeys {
			if key != "" && strings.Contains(key, kw) {
				return true
			}
		}
	}
	return false
}

// significantWords extracts the question's identifying keywords: lowercase
// tokens of four letters or more that are not stopwords.
func significantWords(text string) []string {
	var words []string
	for _, w := range tokenize(text) {
		if len(w) >= 4 && !matchStopwords[w] {
			words = append(words, w)
		}
	}
	return words
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
