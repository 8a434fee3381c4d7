package models

import "time"

// ProjectSnapshot is a non-transactional read of one project's domain and
// requirement graph. It is never persisted.
type ProjectSnapshot struct {
	Domains      []Domain
	Attributes   []DomainAttribute
	Requirements []Requirement
	Steps        []RequirementStep
	TestCases    []TestCase
}

// AttributesFor returns the attributes owned by domainID in snapshot order.
func (s *ProjectSnapshot) AttributesFor(domainID string) []DomainAttribute {
	var out []DomainAttribute
	for _, a := range s.Attributes {
		if a.DomainID == domainID {
			out = append(out, a)
		}
	}
	return out
}

// StepsFor returns the steps owned by requirementID in snapshot order.
func (s *ProjectSnapshot) StepsFor(requirementID string) []RequirementStep {
	var out []RequirementStep
	for _, st := range s.Steps {
		if st.RequirementID == requirementID {
			out = append(out, st)
		}
	}
	return out
}

// TestCasesFor returns the test cases owned by requirementID in snapshot order.
func (s *ProjectSnapshot) TestCasesFor(requirementID string) []TestCase {
	var out []TestCase
	for _, tc := range s.TestCases {
		if tc.RequirementID == requirementID {
			out = append(out, tc)
		}
	}
	return out
}

// ChangeSet holds the most recent update time per collaborator collection.
// A nil field means the collection is empty.
type ChangeSet struct {
	Domains      *time.Time
	Requirements *time.Time
	TestCases    *time.Time
}

// ProjectChanges reports whether a project changed after its latest specification.
type ProjectChanges struct {
	HasChanges   bool       `json:"hasChanges"`
	LatestChange *time.Time `json:"latestChange,omitempty"`
	ChangedItems []string   `json:"changedItems"`
}
