package ingestion_engine

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer prepares raw document text for chunking and display.
// Source kinds pick an implementation by capability: generic prose,
// markup-aware (HTML), or tabular-aware. There is no inheritance chain;
// each implementation is complete on its own.
type Normalizer interface {
	// CleanText removes control/escape characters and collapses irregular
	// whitespace.
	CleanText(text string) string
	// SentenceList splits text into ordered sentences.
	SentenceList(text string) []string
}

// sentenceRe matches one sentence ending in terminal punctuation.
var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// GenericNormalizer assumes generic prose.
type GenericNormalizer struct{}

func NewGenericNormalizer() *GenericNormalizer { return &GenericNormalizer{} }

func (GenericNormalizer) CleanText(text string) string {
	return cleanText(text)
}

func (GenericNormalizer) SentenceList(text string) []string {
	return sentenceList(text)
}

// TabularNormalizer cleans row-to-text units. Each row unit is one line of
// comma-joined "header: value" pairs, so it only strips unprintables and
// trims; it does not try to reflow field text into prose.
type TabularNormalizer struct{}

func NewTabularNormalizer() *TabularNormalizer { return &TabularNormalizer{} }

func (TabularNormalizer) CleanText(text string) string {
	return cleanText(text)
}

// SentenceList treats each row unit line as one sentence: rows are already
// the atomic unit of meaning in tabular sources.
func (TabularNormalizer) SentenceList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// cleanText drops unprintable and escape characters and collapses runs of
// whitespace into single spaces, preserving line breaks between units.
func cleanText(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			sb.WriteByte('\n')
			prevSpace = true
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			prevSpace = true
		case unicode.IsControl(r) || !unicode.IsPrint(r):
			// dropped
		default:
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

// sentenceList segments prose into sentences. Text with no terminal
// punctuation becomes a single sentence so short documents still chunk.
func sentenceList(text string) []string {
	matches := sentenceRe.FindAllStringIndex(text, -1)
	var out []string
	last := 0
	for _, m := range matches {
		s := strings.TrimSpace(text[m[0]:m[1]])
		if s != "" {
			out = append(out, s)
		}
		last = m[1]
	}
	// Trailing text without terminal punctuation is still a sentence.
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
