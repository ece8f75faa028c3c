// Package segment splits prompts into sentences for per-sentence similarity
// search.
package segment

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

var (
	sentenceEnd = regexp.MustCompile(`[\n.!?:…]+["')]*`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Splitter splits text into sentences with a punkt tokenizer, falling back
// to punctuation splitting when the tokenizer is unavailable.
type Splitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// New creates a Splitter.
func New(logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		logger.With("component", "segment").Warn("punkt tokenizer unavailable, using punctuation splitting", "error", err)
		return &Splitter{}
	}
	return &Splitter{tokenizer: tokenizer}
}

// Split returns the trimmed sentences of text. Sentences of one character
// or less are dropped.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if s.tokenizer == nil {
		return Fallback(text)
	}

	var out []string
	for _, sent := range s.tokenizer.Tokenize(text) {
		// punkt keeps newlines inside a sentence; treat them as boundaries.
		for _, line := range strings.Split(sent.Text, "\n") {
			if line = strings.TrimSpace(line); keep(line) {
				out = append(out, line)
			}
		}
	}
	return out
}

// Fallback splits on sentence-ending punctuation and newlines and collapses
// internal whitespace.
func Fallback(text string) []string {
	var out []string
	for _, part := range sentenceEnd.Split(text, -1) {
		part = whitespace.ReplaceAllString(strings.TrimSpace(part), " ")
		if keep(part) {
			out = append(out, part)
		}
	}
	return out
}

func keep(s string) bool {
	return utf8.RuneCountInString(s) > 1
}
