package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"specgen/internal/models"
)

// FindDomainsByProject returns a project's domains, oldest first.
func (s *Store) FindDomainsByProject(ctx context.Context, projectID string) ([]models.Domain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, description, created_at, updated_at
		FROM domains
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: domains: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	domains := make([]models.Domain, 0)
	for rows.Next() {
		var d models.Domain
		var description sql.NullString
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Name, &description, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan domain: %v", ErrQueryFailed, err)
		}
		d.Description = nullableString(description)
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: domains: %v", ErrQueryFailed, err)
	}
	return domains, nil
}

// FindAttributesByDomain returns a domain's attributes, oldest first.
func (s *Store) FindAttributesByDomain(ctx context.Context, domainID string) ([]models.DomainAttribute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, domain_id, name, data_type, is_required, default_value,
		       validation_rules, created_at, updated_at
		FROM domain_attributes
		WHERE domain_id = $1
		ORDER BY created_at ASC, id ASC`, domainID)
	if err != nil {
		return nil, fmt.Errorf("%w: domain attributes: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	attrs := make([]models.DomainAttribute, 0)
	for rows.Next() {
		var a models.DomainAttribute
		var defaultValue sql.NullString
		var rules []byte
		if err := rows.Scan(
			&a.ID, &a.DomainID, &a.Name, &a.DataType, &a.IsRequired,
			&defaultValue, &rules, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan domain attribute: %v", ErrQueryFailed, err)
		}
		a.DefaultValue = nullableString(defaultValue)
		if len(rules) > 0 && string(rules) != "null" {
			a.ValidationRules = json.RawMessage(rules)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: domain attributes: %v", ErrQueryFailed, err)
	}
	return attrs, nil
}

// FindRequirementsByProject returns a project's requirements, oldest first.
func (s *Store) FindRequirementsByProject(ctx context.Context, projectID string) ([]models.Requirement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, title, description, gherkin_scenario, created_at, updated_at
		FROM requirements
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: requirements: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	reqs := make([]models.Requirement, 0)
	for rows.Next() {
		var r models.Requirement
		var description sql.NullString
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Title, &description, &r.GherkinScenario, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan requirement: %v", ErrQueryFailed, err)
		}
		r.Description = nullableString(description)
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: requirements: %v", ErrQueryFailed, err)
	}
	return reqs, nil
}

// FindStepsByRequirement returns a requirement's stored steps by step_order.
func (s *Store) FindStepsByRequirement(ctx context.Context, requirementID string) ([]models.RequirementStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, requirement_id, step_type, step_order, step_text, domain_references, created_at
		FROM requirement_steps
		WHERE requirement_id = $1
		ORDER BY step_order ASC, id ASC`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("%w: requirement steps: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	steps := make([]models.RequirementStep, 0)
	for rows.Next() {
		var st models.RequirementStep
		var refs []byte
		if err := rows.Scan(&st.ID, &st.RequirementID, &st.StepType, &st.StepOrder, &st.StepText, &refs, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan requirement step: %v", ErrQueryFailed, err)
		}
		if st.DomainReferences, err = decodeReferences(refs); err != nil {
			return nil, fmt.Errorf("%w: decode domain references for step %s: %v", ErrQueryFailed, st.ID, err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: requirement steps: %v", ErrQueryFailed, err)
	}
	return steps, nil
}

// FindTestCasesByRequirement returns a requirement's test cases, oldest first.
func (s *Store) FindTestCasesByRequirement(ctx context.Context, requirementID string) ([]models.TestCase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, requirement_id, name, description, expected_outcome, status, created_at, updated_at
		FROM test_cases
		WHERE requirement_id = $1
		ORDER BY created_at ASC, id ASC`, requirementID)
	if err != nil {
		return nil, fmt.Errorf("%w: test cases: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	cases := make([]models.TestCase, 0)
	for rows.Next() {
		var tc models.TestCase
		var description, expected sql.NullString
		if err := rows.Scan(&tc.ID, &tc.RequirementID, &tc.Name, &description, &expected, &tc.Status, &tc.CreatedAt, &tc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan test case: %v", ErrQueryFailed, err)
		}
		tc.Description = nullableString(description)
		tc.ExpectedOutcome = nullableString(expected)
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: test cases: %v", ErrQueryFailed, err)
	}
	return cases, nil
}

// LatestChanges returns the newest updated_at per collaborator collection.
func (s *Store) LatestChanges(ctx context.Context, projectID string) (*models.ChangeSet, error) {
	var domains, requirements, testCases sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT MAX(updated_at) FROM domains WHERE project_id = $1),
			(SELECT MAX(updated_at) FROM requirements WHERE project_id = $1),
			(SELECT MAX(tc.updated_at)
			   FROM test_cases tc
			   JOIN requirements r ON r.id = tc.requirement_id
			  WHERE r.project_id = $1)`, projectID).Scan(&domains, &requirements, &testCases)
	if err != nil {
		return nil, fmt.Errorf("%w: latest changes: %v", ErrQueryFailed, err)
	}

	return &models.ChangeSet{
		Domains:      nullableTime(domains),
		Requirements: nullableTime(requirements),
		TestCases:    nullableTime(testCases),
	}, nil
}

// decodeReferences accepts either ["Domain.attr"] or [{"domainName":..,"attributeName":..}].
func decodeReferences(raw []byte) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var plain []string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}
	var structured []models.DomainReference
	if err := json.Unmarshal(raw, &structured); err != nil {
		return nil, err
	}
	out := make([]string, len(structured))
	for i, r := range structured {
		out[i] = r.String()
	}
	return out, nil
}
