package models

import "strings"

// StepType is the keyword class of a scenario line.
type StepType string

const (
	StepGiven StepType = "given"
	StepWhen  StepType = "when"
	StepThen  StepType = "then"
	StepAnd   StepType = "and"
	StepBut   StepType = "but"
)

// StepTypes lists every step type in keyword-matching priority order.
var StepTypes = []StepType{StepGiven, StepWhen, StepThen, StepAnd, StepBut}

// Keyword returns the canonical capitalized keyword, e.g. "Given".
func (s StepType) Keyword() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ParseStepType maps a stored or user-supplied keyword to its StepType, ignoring case.
func ParseStepType(value string) (StepType, bool) {
	v := StepType(strings.ToLower(strings.TrimSpace(value)))
	for _, st := range StepTypes {
		if st == v {
			return st, true
		}
	}
	return "", false
}

// DomainReference is a ${Domain.attribute} citation embedded in step text.
type DomainReference struct {
	DomainName    string `json:"domainName" yaml:"domain"`
	AttributeName string `json:"attributeName" yaml:"attribute"`
}

func (r DomainReference) String() string {
	return r.DomainName + "." + r.AttributeName
}

// ParsedStep is one recognized scenario line.
type ParsedStep struct {
	StepType         StepType          `json:"stepType" yaml:"type"`
	Order            int               `json:"order" yaml:"order"`
	Text             string            `json:"text" yaml:"text"`
	DomainReferences []DomainReference `json:"domainReferences" yaml:"references,omitempty"`
}
