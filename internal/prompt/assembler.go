// Package prompt renders a project snapshot into the generation request document.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"specgen/internal/gherkin"
	"specgen/internal/models"
)

const intro = "You are a software architect tasked with generating a comprehensive software specification " +
	"based on the following business requirements.\n\n"

var outputSections = []struct{ title, detail string }{
	{"System Overview", "High-level description of the system and its purpose"},
	{"Architecture", "System architecture, components, and their interactions"},
	{"Technical Requirements", "Technology stack, frameworks, and infrastructure"},
	{"Data Models", "Detailed data structures based on the business domains"},
	{"API Specifications", "Endpoints, request/response formats"},
	{"Business Logic", "Implementation details for each functional requirement"},
	{"Security Considerations", "Authentication, authorization, data protection"},
	{"Testing Strategy", "Unit, integration, and end-to-end testing approach"},
	{"Deployment", "Deployment architecture and requirements"},
	{"Implementation Notes", "Any additional considerations or recommendations"},
}

// Stats counts snapshot contents for specification metadata.
type Stats struct {
	Domains      int `json:"domains"`
	Attributes   int `json:"attributes"`
	Requirements int `json:"requirements"`
	Steps        int `json:"steps"`
	TestCases    int `json:"testCases"`
}

// StatsOf counts the collections of snap.
func StatsOf(snap *models.ProjectSnapshot) Stats {
	return Stats{
		Domains:      len(snap.Domains),
		Attributes:   len(snap.Attributes),
		Requirements: len(snap.Requirements),
		Steps:        len(snap.Steps),
		TestCases:    len(snap.TestCases),
	}
}

// Assemble renders snap. It has no side effects; equal snapshots yield
// byte-identical documents.
func Assemble(snap *models.ProjectSnapshot) string {
	var b strings.Builder

	b.WriteString(intro)
	writeDomains(&b, snap)
	writeRequirements(&b, snap)
	writeTask(&b)

	return b.String()
}

func writeDomains(b *strings.Builder, snap *models.ProjectSnapshot) {
	b.WriteString("# Business Domains\n\n")

	if len(snap.Domains) == 0 {
		b.WriteString("No domains defined.\n\n")
		return
	}

	for _, d := range snap.Domains {
		fmt.Fprintf(b, "## %s\n", d.Name)
		if d.Description != nil {
			fmt.Fprintf(b, "%s\n", *d.Description)
		}

		attrs := snap.AttributesFor(d.ID)
		if len(attrs) > 0 {
			b.WriteString("\n**Attributes:**\n")
			for _, a := range attrs {
				fmt.Fprintf(b, "- `%s` (%s)", a.Name, a.DataType)
				if a.IsRequired {
					b.WriteString(", required")
				}
				if rules := validationRules(a); rules != "" {
					fmt.Fprintf(b, ", validation: %s", rules)
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
}

func writeRequirements(b *strings.Builder, snap *models.ProjectSnapshot) {
	b.WriteString("# Functional Requirements\n\n")

	if len(snap.Requirements) == 0 {
		b.WriteString("No requirements defined.\n\n")
		return
	}

	for _, r := range snap.Requirements {
		fmt.Fprintf(b, "## %s\n", r.Title)
		if r.Description != nil {
			fmt.Fprintf(b, "%s\n\n", *r.Description)
		}

		if steps := snap.StepsFor(r.ID); len(steps) > 0 {
			b.WriteString("```gherkin\n")
			for _, st := range steps {
				b.WriteString(gherkin.FormatLine(keyword(st.StepType), st.StepText))
				b.WriteString("\n")
			}
			b.WriteString("```\n\n")
		}

		if cases := snap.TestCasesFor(r.ID); len(cases) > 0 {
			b.WriteString("**Test Cases:**\n")
			for _, tc := range cases {
				fmt.Fprintf(b, "- %s\n", tc.Name)
				if tc.Description != nil {
					fmt.Fprintf(b, "  %s\n", *tc.Description)
				}
				if tc.ExpectedOutcome != nil {
					fmt.Fprintf(b, "  Expected: %s\n", *tc.ExpectedOutcome)
				}
			}
			b.WriteString("\n")
		}
	}
}

func writeTask(b *strings.Builder) {
	b.WriteString("# Task\n\n")
	b.WriteString("Based on the above business domains and functional requirements, please generate a " +
		"comprehensive software specification that includes:\n\n")
	for i, s := range outputSections {
		fmt.Fprintf(b, "%d. **%s**: %s\n", i+1, s.title, s.detail)
	}
	b.WriteString("\nPlease provide the specification in well-structured Markdown format with clear sections and subsections.\n")
}

// keyword normalizes a stored step type to its canonical keyword. Unknown
// values are rendered as stored.
func keyword(stored string) string {
	if st, ok := models.ParseStepType(stored); ok {
		return st.Keyword()
	}
	return stored
}

// validationRules renders stored JSON rules compactly; JSON null and empty
// values are treated as absent.
func validationRules(a models.DomainAttribute) string {
	raw := strings.TrimSpace(string(a.ValidationRules))
	if raw == "" || raw == "null" || raw == "{}" || raw == "[]" || raw == `""` {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}
