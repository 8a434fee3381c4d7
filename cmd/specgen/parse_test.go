package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "specgen/internal/common/errors"
	"specgen/internal/models"
)

const scenario = `Feature: login
Given a registered ${User.email}
when the user submits ${User.password}
Then access is granted
`

func TestRunParse_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runParse(strings.NewReader(scenario), &out, "yaml", false))

	var decoded struct {
		Steps []struct {
			Type  string `yaml:"type"`
			Order int    `yaml:"order"`
			Text  string `yaml:"text"`
		} `yaml:"steps"`
		References []struct {
			Domain    string `yaml:"domain"`
			Attribute string `yaml:"attribute"`
		} `yaml:"references"`
		Dropped []struct {
			Line    int    `yaml:"line"`
			Content string `yaml:"content"`
		} `yaml:"dropped"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))

	require.Len(t, decoded.Steps, 3)
	assert.Equal(t, "given", decoded.Steps[0].Type)
	assert.Equal(t, "when", decoded.Steps[1].Type)
	assert.Equal(t, 2, decoded.Steps[2].Order)
	assert.Equal(t, "access is granted", decoded.Steps[2].Text)

	require.Len(t, decoded.References, 2)
	assert.Equal(t, "User", decoded.References[1].Domain)
	assert.Equal(t, "password", decoded.References[1].Attribute)

	require.Len(t, decoded.Dropped, 1)
	assert.Equal(t, 1, decoded.Dropped[0].Line)
	assert.Equal(t, "Feature: login", decoded.Dropped[0].Content)
}

func TestRunParse_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runParse(strings.NewReader(scenario), &out, "json", false))

	var decoded struct {
		Steps []models.ParsedStep `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded.Steps, 3)
	assert.Equal(t, models.StepThen, decoded.Steps[2].StepType)
}

func TestRunParse_Strict(t *testing.T) {
	var out bytes.Buffer
	err := runParse(strings.NewReader("just prose\n"), &out, "yaml", true)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))

	out.Reset()
	assert.NoError(t, runParse(strings.NewReader("just prose\n"), &out, "yaml", false))
}

func TestRunParse_UnknownFormat(t *testing.T) {
	err := runParse(strings.NewReader(scenario), &bytes.Buffer{}, "xml", false)
	assert.Error(t, err)
}
