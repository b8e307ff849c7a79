package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/approvalflow/engine/internal/domain/workflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph.json>",
	Short: "Check a workflow graph for structural errors",
	Long:  `Reads a graph definition from a JSON file and reports every structural error: missing or duplicate steps, cycles, unreachable steps, and dead ends.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read graph file: %w", err)
	}

	var raw workflow.Graph
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse graph file: %w", err)
	}

	graph := workflow.NewGraph(raw.Steps, raw.Transitions)
	if errs := workflow.Validate(graph); len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("%s: %s\n", e.Code, e.Message)
		}
		return fmt.Errorf("graph has %d error(s)", len(errs))
	}

	fmt.Println("Graph is valid")
	return nil
}
