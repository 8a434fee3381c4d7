// Package gherkin turns free-form scenario text into ordered, typed steps.
//
// The grammar is one step per non-blank line, each line starting with one of
// Given, When, Then, And or But (any case). Lines without a keyword are dropped
// without error and do not take an order slot; Warnings lists them for callers
// that want to surface the leniency.
package gherkin

import (
	"regexp"
	"strings"

	apperrors "specgen/internal/common/errors"
	"specgen/internal/models"
)

var referencePattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\.([A-Za-z0-9_]+)\}`)

// ParseError is returned by Validate when a scenario has no recognizable steps.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return e.Reason
}

// ErrorCode classifies a ParseError as a validation failure.
func (e *ParseError) ErrorCode() apperrors.ErrorCode {
	return apperrors.ErrCodeValidationFailed
}

// LineWarning describes a non-blank line that Parse dropped.
type LineWarning struct {
	Line    int    `json:"line" yaml:"line"`
	Content string `json:"content" yaml:"content"`
}

// Parse returns one step per recognized line. Order is contiguous from zero.
func Parse(text string) []models.ParsedStep {
	steps := make([]models.ParsedStep, 0)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		stepType, rest, ok := matchKeyword(line)
		if !ok {
			continue
		}
		steps = append(steps, models.ParsedStep{
			StepType:         stepType,
			Order:            len(steps),
			Text:             rest,
			DomainReferences: ExtractReferences(rest),
		})
	}
	return steps
}

// ExtractReferences returns every ${Domain.attribute} in text, left to right,
// duplicates included. Malformed references are skipped.
func ExtractReferences(text string) []models.DomainReference {
	refs := make([]models.DomainReference, 0)
	for _, m := range referencePattern.FindAllStringSubmatch(text, -1) {
		refs = append(refs, models.DomainReference{
			DomainName:    m[1],
			AttributeName: m[2],
		})
	}
	return refs
}

// Format renders steps as "Keyword text" lines. Parse(Format(steps)) yields the
// same step types and texts in the same order.
func Format(steps []models.ParsedStep) string {
	lines := make([]string, len(steps))
	for i, s := range steps {
		lines[i] = FormatLine(s.StepType.Keyword(), s.Text)
	}
	return strings.Join(lines, "\n")
}

// FormatLine renders a single keyword line.
func FormatLine(keyword, text string) string {
	if text == "" {
		return keyword
	}
	return keyword + " " + text
}

// Validate fails when text contains no recognizable step.
func Validate(text string) error {
	if len(Parse(text)) == 0 {
		return &ParseError{Reason: "no valid scenario steps found; use Given/When/Then/And/But keywords"}
	}
	return nil
}

// Warnings returns the non-blank lines Parse drops, with 1-based line numbers.
func Warnings(text string) []LineWarning {
	var out []LineWarning
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if _, _, ok := matchKeyword(line); !ok {
			out = append(out, LineWarning{Line: i + 1, Content: line})
		}
	}
	return out
}

// matchKeyword tries keywords in priority order as a case-insensitive prefix.
// The keyword need not be followed by whitespace.
func matchKeyword(line string) (models.StepType, string, bool) {
	for _, st := range models.StepTypes {
		kw := string(st)
		if len(line) >= len(kw) && strings.EqualFold(line[:len(kw)], kw) {
			return st, strings.TrimSpace(line[len(kw):]), true
		}
	}
	return "", "", false
}
