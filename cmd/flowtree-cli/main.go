// Package main provides a CLI for working with flow definitions and their
// tree documents on the local filesystem.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvalderas/flowtree/pkg/codec"
	"github.com/dvalderas/flowtree/pkg/flow"
	"github.com/dvalderas/flowtree/pkg/graph"
	"github.com/dvalderas/flowtree/pkg/validator"
)

var (
	// Global flags
	maxPaths int
	maxDepth int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "flowtree-cli",
		Short: "FlowTree CLI",
		Long:  "Command-line interface for validating and converting flow definitions",
	}

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a flow definition (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	validateCmd.Flags().IntVar(&maxPaths, "max-paths", 0, "Maximum number of paths to report")
	validateCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum number of nodes per path")

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Convert a flow definition (JSON) into its tree document",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Convert a tree document back into a flow definition (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	pathsCmd := &cobra.Command{
		Use:   "paths [file]",
		Short: "Enumerate the root-to-terminal paths of a flow definition",
		Args:  cobra.ExactArgs(1),
		RunE:  runPaths,
	}
	pathsCmd.Flags().IntVar(&maxPaths, "max-paths", 0, "Maximum number of paths to report")
	pathsCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum number of nodes per path")

	rootCmd.AddCommand(validateCmd, exportCmd, importCmd, pathsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadFlow reads and parses a flow definition file.
func loadFlow(path string) (*flow.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var definition flow.Flow
	if err := json.Unmarshal(data, &definition); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &definition, nil
}

func pathOptions() []graph.PathOption {
	var opts []graph.PathOption
	if maxPaths > 0 {
		opts = append(opts, graph.WithMaxPaths(maxPaths))
	}
	if maxDepth > 0 {
		opts = append(opts, graph.WithMaxDepth(maxDepth))
	}
	return opts
}

func runValidate(cmd *cobra.Command, args []string) error {
	definition, err := loadFlow(args[0])
	if err != nil {
		return err
	}

	diagnostics := validator.Validate(definition)

	output, err := json.MarshalIndent(diagnostics, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	fmt.Println(string(output))

	if !diagnostics.Valid {
		return errors.New("flow is not valid")
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	definition, err := loadFlow(args[0])
	if err != nil {
		return err
	}

	text, _ := codec.Export(definition)
	fmt.Print(text)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	definition, err := codec.Import(string(data))
	if err != nil {
		var importErr *codec.ImportError
		if errors.As(err, &importErr) {
			return errors.New(importErr.Message)
		}
		return err
	}

	output, err := json.MarshalIndent(definition, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flow definition: %w", err)
	}
	fmt.Println(string(output))
	return nil
}

func runPaths(cmd *cobra.Command, args []string) error {
	definition, err := loadFlow(args[0])
	if err != nil {
		return err
	}

	paths := graph.EnumeratePaths(definition, pathOptions()...)
	if len(paths) == 0 {
		fmt.Println("No se encontraron caminos.")
		return nil
	}
	for _, path := range paths {
		fmt.Println(strings.Join(path, " -> "))
	}
	return nil
}
