// Package pii detects personally-identifiable information in chat text and
// replaces it with reversible placeholders before the text leaves the
// process. The placeholder table lives only for the duration of a request.
package pii

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Kind identifies a category of detected PII.
type Kind string

const (
	KindEmail      Kind = "EMAIL"
	KindPhone      Kind = "PHONE"
	KindSSN        Kind = "SSN"
	KindCreditCard Kind = "CREDIT_CARD"
)

// Pattern pairs a PII kind with its compiled detection regex.
type Pattern struct {
	Kind  Kind
	Regex *regexp.Regexp
}

// DefaultPatterns returns the detection patterns in application order.
// Order matters: the running text is mutated between kinds, so later kinds
// see placeholders emitted by earlier ones.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{KindEmail, regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
		{KindPhone, regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)},
		{KindSSN, regexp.MustCompile(`\b\d{3}[-.\s]?\d{2}[-.\s]?\d{4}\b`)},
		{KindCreditCard, regexp.MustCompile(`\b(?:\d{4}[-.\s]?){3}\d{4}\b`)},
	}
}

// Token records one replacement so it can be reversed later.
type Token struct {
	Kind        Kind   `json:"kind"`
	Index       int    `json:"index"` // 1-based per kind
	Placeholder string `json:"placeholder"`
	Original    string `json:"original"`
}

// Obfuscator replaces detected PII with unique-suffixed placeholders.
// Stateless aside from compiled patterns; safe for concurrent use.
type Obfuscator struct {
	patterns []Pattern
}

// NewObfuscator creates an obfuscator with the default patterns.
func NewObfuscator() *Obfuscator {
	return &Obfuscator{patterns: DefaultPatterns()}
}

// NewObfuscatorWithPatterns creates an obfuscator with a custom ordered
// pattern list.
func NewObfuscatorWithPatterns(patterns []Pattern) *Obfuscator {
	return &Obfuscator{patterns: patterns}
}

// Obfuscate replaces every match of every pattern with a placeholder of the
// form [<KIND>_<index>] and returns the rewritten text plus the token table
// needed to reverse it.
func (o *Obfuscator) Obfuscate(text string) (string, []Token) {
	var tokens []Token
	current := text

	for _, p := range o.patterns {
		matches := p.Regex.FindAllStringIndex(current, -1)
		if len(matches) == 0 {
			continue
		}

		kindTokens := make([]Token, 0, len(matches))
		for i, m := range matches {
			kindTokens = append(kindTokens, Token{
				Kind:        p.Kind,
				Index:       i + 1,
				Placeholder: fmt.Sprintf("[%s_%d]", p.Kind, i+1),
				Original:    current[m[0]:m[1]],
			})
		}

		// Replace from the last match backwards so earlier indices stay valid.
		sort.SliceStable(matches, func(a, b int) bool { return matches[a][0] > matches[b][0] })
		for i, m := range matches {
			tok := kindTokens[len(kindTokens)-1-i]
			current = current[:m[0]] + tok.Placeholder + current[m[1]:]
		}

		tokens = append(tokens, kindTokens...)
	}

	return current, tokens
}

// Deobfuscate restores original substrings by replacing the first occurrence
// of each placeholder in token capture order. Idempotent once no
// placeholders remain.
func (o *Obfuscator) Deobfuscate(text string, tokens []Token) string {
	for _, tok := range tokens {
		text = strings.Replace(text, tok.Placeholder, tok.Original, 1)
	}
	return text
}

// ContainsPII reports whether any pattern matches text.
func (o *Obfuscator) ContainsPII(text string) bool {
	for _, p := range o.patterns {
		if p.Regex.MatchString(text) {
			return true
		}
	}
	return false
}
