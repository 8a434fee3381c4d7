package prompt

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specgen/internal/models"
)

func strPtr(s string) *string { return &s }

func createTestSnapshot() *models.ProjectSnapshot {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.ProjectSnapshot{
		Domains: []models.Domain{
			{ID: "d1", Name: "User", Description: strPtr("A registered person"), CreatedAt: created},
			{ID: "d2", Name: "Order", CreatedAt: created},
		},
		Attributes: []models.DomainAttribute{
			{ID: "a1", DomainID: "d1", Name: "email", DataType: "string", IsRequired: true, ValidationRules: json.RawMessage(`{ "format" : "email" }`)},
			{ID: "a2", DomainID: "d1", Name: "nickname", DataType: "string", ValidationRules: json.RawMessage(`null`)},
		},
		Requirements: []models.Requirement{
			{ID: "r1", Title: "Login", Description: strPtr("Users can sign in")},
			{ID: "r2", Title: "Checkout"},
		},
		Steps: []models.RequirementStep{
			{ID: "s1", RequirementID: "r1", StepType: "given", StepOrder: 0, StepText: "a user exists"},
			{ID: "s2", RequirementID: "r1", StepType: "WHEN", StepOrder: 1, StepText: "they log in"},
			{ID: "s3", RequirementID: "r1", StepType: "Then", StepOrder: 2, StepText: "they see ${Dashboard.summary}"},
		},
		TestCases: []models.TestCase{
			{ID: "t1", RequirementID: "r1", Name: "valid credentials", Description: strPtr("correct password"), ExpectedOutcome: strPtr("dashboard shown")},
			{ID: "t2", RequirementID: "r1", Name: "no details"},
		},
	}
}

func TestAssemble_Structure(t *testing.T) {
	doc := Assemble(createTestSnapshot())

	assert.True(t, strings.HasPrefix(doc, "You are a software architect"))

	domainsAt := strings.Index(doc, "# Business Domains\n\n")
	requirementsAt := strings.Index(doc, "# Functional Requirements\n\n")
	taskAt := strings.Index(doc, "# Task\n\n")
	require.True(t, domainsAt > 0)
	require.True(t, requirementsAt > domainsAt)
	require.True(t, taskAt > requirementsAt)

	assert.Contains(t, doc, "## User\nA registered person\n\n**Attributes:**\n"+
		"- `email` (string), required, validation: {\"format\":\"email\"}\n"+
		"- `nickname` (string)\n\n")
	assert.Contains(t, doc, "## Order\n\n# Functional Requirements")

	assert.Contains(t, doc, "## Login\nUsers can sign in\n\n```gherkin\n"+
		"Given a user exists\nWhen they log in\nThen they see ${Dashboard.summary}\n```\n\n")
	assert.Contains(t, doc, "**Test Cases:**\n- valid credentials\n  correct password\n  Expected: dashboard shown\n- no details\n\n")
	assert.Contains(t, doc, "## Checkout\n# Task")

	assert.Contains(t, doc, "1. **System Overview**")
	assert.Contains(t, doc, "10. **Implementation Notes**")
	assert.True(t, strings.HasSuffix(doc, "well-structured Markdown format with clear sections and subsections.\n"))
}

func TestAssemble_EmptySnapshot(t *testing.T) {
	doc := Assemble(&models.ProjectSnapshot{})

	assert.Contains(t, doc, "# Business Domains\n\nNo domains defined.\n\n")
	assert.Contains(t, doc, "# Functional Requirements\n\nNo requirements defined.\n\n")
	assert.Contains(t, doc, "# Task")
}

func TestAssemble_OmitsAbsentFields(t *testing.T) {
	snap := &models.ProjectSnapshot{
		Domains:      []models.Domain{{ID: "d1", Name: "Bare"}},
		Attributes:   []models.DomainAttribute{{ID: "a1", DomainID: "d1", Name: "x", DataType: "int"}},
		Requirements: []models.Requirement{{ID: "r1", Title: "Bare requirement"}},
		TestCases:    []models.TestCase{{ID: "t1", RequirementID: "r1", Name: "only a name"}},
	}

	doc := Assemble(snap)

	assert.NotContains(t, doc, "<nil>")
	assert.NotContains(t, doc, "null")
	assert.NotContains(t, doc, "Expected:")
	assert.NotContains(t, doc, "required")
	assert.NotContains(t, doc, "```gherkin")
	assert.Contains(t, doc, "- `x` (int)\n")
}

func TestAssemble_Deterministic(t *testing.T) {
	first := Assemble(createTestSnapshot())
	second := Assemble(createTestSnapshot())

	assert.Equal(t, first, second)
}

func TestAssemble_AttributesGroupedByOwningDomain(t *testing.T) {
	snap := &models.ProjectSnapshot{
		Domains: []models.Domain{{ID: "d1", Name: "First"}, {ID: "d2", Name: "Second"}},
		Attributes: []models.DomainAttribute{
			{ID: "a1", DomainID: "d2", Name: "belongs_to_second", DataType: "string"},
			{ID: "a2", DomainID: "d1", Name: "belongs_to_first", DataType: "string"},
		},
	}

	doc := Assemble(snap)

	first := strings.Index(doc, "## First")
	second := strings.Index(doc, "## Second")
	assert.True(t, strings.Index(doc, "belongs_to_first") > first)
	assert.True(t, strings.Index(doc, "belongs_to_first") < second)
	assert.True(t, strings.Index(doc, "belongs_to_second") > second)
}

func TestStatsOf(t *testing.T) {
	stats := StatsOf(createTestSnapshot())

	assert.Equal(t, Stats{Domains: 2, Attributes: 2, Requirements: 2, Steps: 3, TestCases: 2}, stats)
}
