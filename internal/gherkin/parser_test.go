package gherkin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "specgen/internal/common/errors"
	"specgen/internal/models"
)

func TestParse_ScenarioWithReference(t *testing.T) {
	steps := Parse("Given a user exists\nWhen they log in\nThen they see ${Dashboard.summary}")

	require.Len(t, steps, 3)
	assert.Equal(t, models.StepGiven, steps[0].StepType)
	assert.Equal(t, "a user exists", steps[0].Text)
	assert.Equal(t, models.StepWhen, steps[1].StepType)
	assert.Equal(t, models.StepThen, steps[2].StepType)

	require.Len(t, steps[2].DomainReferences, 1)
	assert.Equal(t, "Dashboard.summary", steps[2].DomainReferences[0].String())
	assert.Empty(t, steps[0].DomainReferences)
}

func TestParse_OrderIsContiguous(t *testing.T) {
	text := "\n  Feature: login\nGiven a\n\n# comment\nWhen b\nrandom prose\nThen c\n   \nAnd d\n"

	steps := Parse(text)

	require.Len(t, steps, 4)
	for i, s := range steps {
		assert.Equal(t, i, s.Order)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, texts(steps))
}

func TestParse_CaseInsensitiveKeywords(t *testing.T) {
	for _, line := range []string{"given a user", "GIVEN a user", "Given a user", "gIvEn a user"} {
		t.Run(line, func(t *testing.T) {
			steps := Parse(line)
			require.Len(t, steps, 1)
			assert.Equal(t, models.StepGiven, steps[0].StepType)
			assert.Equal(t, "a user", steps[0].Text)
		})
	}
}

func TestParse_PreservesTextCasing(t *testing.T) {
	steps := Parse("THEN The Dashboard SHOWS   Totals  ")

	require.Len(t, steps, 1)
	assert.Equal(t, models.StepThen, steps[0].StepType)
	assert.Equal(t, "The Dashboard SHOWS   Totals", steps[0].Text)
}

func TestParse_AllKeywords(t *testing.T) {
	steps := Parse("Given a\nWhen b\nThen c\nAnd d\nBut e")

	require.Len(t, steps, 5)
	assert.Equal(t, []models.StepType{models.StepGiven, models.StepWhen, models.StepThen, models.StepAnd, models.StepBut},
		[]models.StepType{steps[0].StepType, steps[1].StepType, steps[2].StepType, steps[3].StepType, steps[4].StepType})
}

func TestParse_KeywordIsPrefixOnly(t *testing.T) {
	steps := Parse("Andrew logs in")

	require.Len(t, steps, 1)
	assert.Equal(t, models.StepAnd, steps[0].StepType)
	assert.Equal(t, "rew logs in", steps[0].Text)
}

func TestParse_EmptyAndUnrecognized(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("   \n\t\n"))
	assert.Empty(t, Parse("Scenario: nothing here\nAs a user I want things"))
}

func TestParse_WindowsLineEndings(t *testing.T) {
	steps := Parse("Given a\r\nWhen b\r\n")

	require.Len(t, steps, 2)
	assert.Equal(t, "a", steps[0].Text)
	assert.Equal(t, "b", steps[1].Text)
}

func TestExtractReferences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"duplicates retained", "${A.x} and ${B.y} and ${A.x}", []string{"A.x", "B.y", "A.x"}},
		{"underscores and digits", "${User_2.first_name}", []string{"User_2.first_name"}},
		{"wrong delimiter", "${A:x} ${A-x}", nil},
		{"empty tokens", "${.x} ${A.} ${}", nil},
		{"missing brace", "$A.x} ${A.x", nil},
		{"nested path", "${A.b.c}", nil},
		{"adjacent", "${A.x}${B.y}", []string{"A.x", "B.y"}},
		{"no references", "plain text", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := ExtractReferences(tt.input)
			var got []string
			for _, r := range refs {
				got = append(got, r.String())
			}
			assert.Equal(t, tt.expected, got)
			assert.NotNil(t, refs)
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	original := []models.ParsedStep{
		{StepType: models.StepGiven, Text: "a cart with ${Cart.items}"},
		{StepType: models.StepAnd, Text: "a coupon"},
		{StepType: models.StepWhen, Text: "the user checks out"},
		{StepType: models.StepThen, Text: "the total is ${Order.total}"},
		{StepType: models.StepBut, Text: "no email is sent"},
	}

	formatted := Format(original)
	parsed := Parse(formatted)

	require.Len(t, parsed, len(original))
	for i := range original {
		assert.Equal(t, original[i].StepType, parsed[i].StepType)
		assert.Equal(t, original[i].Text, parsed[i].Text)
		assert.Equal(t, i, parsed[i].Order)
	}
	assert.Equal(t, "Given a cart with ${Cart.items}\nAnd a coupon\nWhen the user checks out\nThen the total is ${Order.total}\nBut no email is sent", formatted)
}

func TestFormat_ParseFormatParseIsStable(t *testing.T) {
	input := "  given   spaced out\n\nnoise\nTHEN done "

	first := Parse(input)
	second := Parse(Format(first))

	assert.Equal(t, first, second)
}

func TestFormat_Empty(t *testing.T) {
	assert.Equal(t, "", Format(nil))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate("Given something"))

	for _, input := range []string{"", "\n\n", "Feature: x\nScenario: y"} {
		err := Validate(input)
		require.Error(t, err)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.NotEmpty(t, parseErr.Reason)
		assert.True(t, apperrors.IsValidation(err))
	}
}

func TestWarnings(t *testing.T) {
	warnings := Warnings("Feature: checkout\n\nGiven a cart\nsome prose\nThen done")

	require.Len(t, warnings, 2)
	assert.Equal(t, LineWarning{Line: 1, Content: "Feature: checkout"}, warnings[0])
	assert.Equal(t, LineWarning{Line: 4, Content: "some prose"}, warnings[1])

	assert.Empty(t, Warnings("Given a\nWhen b"))
}

func texts(steps []models.ParsedStep) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Text
	}
	return out
}
