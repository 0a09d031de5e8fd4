package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/umlsync/internal/presentation/graph"
	"github.com/aretw0/umlsync/internal/presentation/plantuml"
	"github.com/aretw0/umlsync/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// model is the file format read by generate.
type model struct {
	Title    string          `json:"title" yaml:"title" mapstructure:"title"`
	Actors   []string        `json:"actors" yaml:"actors" mapstructure:"actors"`
	Selected []string        `json:"selectedActors" yaml:"selectedActors" mapstructure:"selectedActors"`
	Actions  []domain.Action `json:"actions" yaml:"actions" mapstructure:"actions"`
}

// decodeModel reads JSON, or YAML for .yaml/.yml names.
func decodeModel(name, data string) (model, error) {
	var m model
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		// Actions carry only json/mapstructure tags; decode generically first.
		var raw map[string]any
		if err := yaml.Unmarshal([]byte(data), &raw); err != nil {
			return m, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		if err := mapstructure.Decode(raw, &m); err != nil {
			return m, fmt.Errorf("failed to decode %s: %w", name, err)
		}
	default:
		if err := json.Unmarshal([]byte(data), &m); err != nil {
			return m, fmt.Errorf("failed to parse %s: %w", name, err)
		}
	}
	for i, a := range m.Actions {
		if err := a.Validate(); err != nil {
			return m, fmt.Errorf("action %d: %w", i, err)
		}
	}
	m.Actors = domain.UniqueStrings(m.Actors)
	return m, nil
}

func render(m model, format string) (string, error) {
	switch format {
	case "plantuml", "":
		return plantuml.Generate(m.Title, m.Actors, m.Actions), nil
	case "mermaid":
		return graph.GenerateMermaid(m.Title, m.Actors, m.Actions, &graph.Highlight{SelectedActors: m.Selected}), nil
	}
	return "", fmt.Errorf("unknown format %q (plantuml, mermaid)", format)
}

var generateCmd = &cobra.Command{
	Use:   "generate [model-file]",
	Short: "Render description text from a JSON or YAML model",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		name := "-"
		if len(args) > 0 {
			name = args[0]
		}
		data, err := readInput(cmd, name)
		if err != nil {
			return err
		}
		m, err := decodeModel(name, data)
		if err != nil {
			return err
		}
		out, err := render(m, format)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringP("format", "f", "plantuml", "Output format: plantuml or mermaid")
}
