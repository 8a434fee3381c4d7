package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"specgen/internal/gherkin"
	"specgen/internal/models"
)

type parseResult struct {
	Steps      []models.ParsedStep      `json:"steps" yaml:"steps"`
	References []models.DomainReference `json:"references" yaml:"references"`
	Dropped    []gherkin.LineWarning    `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

func newParseCmd() *cobra.Command {
	var output string
	var strict bool

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a Gherkin scenario into typed steps",
		Long: `parse reads a scenario from file, or stdin when no file is given, and prints
its steps and domain references. Lines that are neither blank nor steps are
listed under dropped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runParse(in, cmd.OutOrStdout(), output, strict)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format: yaml or json")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the scenario has no steps")
	return cmd
}

func runParse(in io.Reader, out io.Writer, format string, strict bool) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}
	text := string(data)

	if strict {
		if err := gherkin.Validate(text); err != nil {
			return err
		}
	}

	result := parseResult{
		Steps:      gherkin.Parse(text),
		References: gherkin.ExtractReferences(text),
		Dropped:    gherkin.Warnings(text),
	}

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "yaml", "":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(result)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
