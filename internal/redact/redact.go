// Package redact masks secret values in outbound text. It is handed a
// pattern set and an environment snapshot by its caller; it does not own
// the registry of what counts as a secret, only the masking mechanics.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// Pattern is either a literal value to mask (typically derived from an env
// var whose key looks secret-shaped) or a compiled regular expression
// matching a known secret format (API keys, tokens).
type Pattern struct {
	Literal string
	Regexp  *regexp.Regexp
}

// secretKeyHints are substrings that mark an env var's value as sensitive.
var secretKeyHints = []string{"TOKEN", "KEY", "SECRET", "PASSWORD", "CREDENTIAL"}

// Redactor masks secret values in text given an env snapshot and pattern
// set, both supplied at construction.
type Redactor struct {
	patterns []Pattern
}

// New builds a Redactor from an explicit pattern set.
func New(patterns []Pattern) *Redactor {
	r := &Redactor{}
	r.patterns = append(r.patterns, patterns...)
	return r
}

// WithEnv returns a Redactor that additionally masks the value of every
// env var whose key looks secret-shaped (case-insensitive substring match
// against TOKEN/KEY/SECRET/PASSWORD/CREDENTIAL) and whose value is at
// least six characters long, longest-value-first so that overlapping
// substrings mask fully.
func WithEnv(patterns []Pattern, env map[string]string) *Redactor {
	r := New(patterns)
	var literals []string
	for k, v := range env {
		if v == "" || len(v) < 6 {
			continue
		}
		upper := strings.ToUpper(k)
		for _, hint := range secretKeyHints {
			if strings.Contains(upper, hint) {
				literals = append(literals, v)
				break
			}
		}
	}
	sort.Slice(literals, func(i, j int) bool { return len(literals[i]) > len(literals[j]) })
	for _, lit := range literals {
		r.patterns = append(r.patterns, Pattern{Literal: lit})
	}
	return r
}

// Redact masks every occurrence of every configured pattern in text.
func (r *Redactor) Redact(text string) string {
	if text == "" || r == nil {
		return text
	}
	out := text
	for _, p := range r.patterns {
		switch {
		case p.Literal != "":
			out = strings.ReplaceAll(out, p.Literal, "***REDACTED***")
		case p.Regexp != nil:
			out = p.Regexp.ReplaceAllString(out, "***REDACTED***")
		}
	}
	return out
}

// CommonPatterns returns regexp patterns for widely-recognized secret
// formats (Anthropic/OpenAI API keys, GitHub tokens, bearer auth headers).
func CommonPatterns() []Pattern {
	return []Pattern{
		{Regexp: regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
		{Regexp: regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
		{Regexp: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{20,}`)},
		{Regexp: regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{10,}`)},
	}
}
