// Package filter classifies extracted records for topical relevance and
// deduplicates them by normalized content. Matching is lemmatized: inflected
// forms of a keyword ("jobs", "internships") still count.
package filter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/charmbracelet/log"

	"glean/internal/crawler"
)

// Keywords are the dictionary base forms a record must lemmatize to.
var Keywords = []string{"job", "employment", "career", "internship", "fellowship"}

// Relevance filters records against the fixed keyword set.
type Relevance struct {
	lemmatizer *golem.Lemmatizer
	keywords   map[string]struct{}
}

// New builds a Relevance filter backed by the English dictionary.
func New() (*Relevance, error) {
	lemmatizer, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("loading lemmatizer dictionary: %w", err)
	}

	keywords := make(map[string]struct{}, len(Keywords))
	for _, kw := range Keywords {
		keywords[kw] = struct{}{}
	}

	return &Relevance{lemmatizer: lemmatizer, keywords: keywords}, nil
}

// Filter returns the relevant records in their original order, dropping any
// whose lowercased content was already seen. The output never contains two
// records with equal lowercased content.
func (r *Relevance) Filter(records []crawler.Record) []crawler.Record {
	seen := make(map[string]struct{})
	var filtered []crawler.Record

	for _, rec := range records {
		content := strings.ToLower(rec.Content)
		if !r.relevant(content) {
			continue
		}
		if _, dup := seen[content]; dup {
			log.Debug("dropping duplicate record", "page", rec.Page)
			continue
		}
		seen[content] = struct{}{}
		filtered = append(filtered, rec)
	}

	return filtered
}

// relevant reports whether any token of the lowercased text lemmatizes to a
// keyword.
func (r *Relevance) relevant(text string) bool {
	for _, token := range tokenize(text) {
		if _, ok := r.keywords[r.lemmatizer.Lemma(token)]; ok {
			return true
		}
	}
	return false
}

// tokenize splits text on anything that is not a letter.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(c rune) bool {
		return !unicode.IsLetter(c)
	})
}
