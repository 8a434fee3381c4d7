package models

import (
	"encoding/json"
	"time"
)

// Domain, DomainAttribute, Requirement, RequirementStep and TestCase are owned by
// the project CRUD service; specgen only reads them.

type Domain struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type DomainAttribute struct {
	ID              string          `json:"id"`
	DomainID        string          `json:"domainId"`
	Name            string          `json:"name"`
	DataType        string          `json:"dataType"`
	IsRequired      bool            `json:"isRequired"`
	DefaultValue    *string         `json:"defaultValue,omitempty"`
	ValidationRules json.RawMessage `json:"validationRules,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Requirement struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"projectId"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	GherkinScenario string    `json:"gherkinScenario"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type RequirementStep struct {
	ID               string    `json:"id"`
	RequirementID    string    `json:"requirementId"`
	StepType         string    `json:"stepType"`
	StepOrder        int       `json:"stepOrder"`
	StepText         string    `json:"stepText"`
	DomainReferences []string  `json:"domainReferences,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type TestCase struct {
	ID              string    `json:"id"`
	RequirementID   string    `json:"requirementId"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	ExpectedOutcome *string   `json:"expectedOutcome,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
