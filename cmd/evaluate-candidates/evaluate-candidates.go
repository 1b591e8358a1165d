package main

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/willbeason/table-linking/pkg/evaluate"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/tables"
)

const (
	FlagIncludeNIL      = "include-nil"
	FlagIncludeUnlinked = "include-unlinked"
	FlagTopK            = "topk"
	FlagOut             = "out"
)

func init() {
	cmd.Flags().Bool(FlagIncludeNIL, false, "evaluate cells annotated as NIL")
	cmd.Flags().Bool(FlagIncludeUnlinked, false, "evaluate cells without an annotation")
	cmd.Flags().IntSlice(FlagTopK, evaluate.DefaultTopK, "recall cutoffs")
	cmd.Flags().String(FlagOut, "", "output file path (default: stdout)")
}

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "evaluate-candidates EXAMPLES CANDIDATES_DIR",
	Short:   "reports MRR and recall of the candidates written by a linking run",
	Args:    cobra.ExactArgs(2),
	Version: "0.1.0",
	RunE:    runE,
}

type output struct {
	RunID  string           `json:"run_id"`
	Report *evaluate.Report `json:"report"`
}

func runE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	examplesPath := args[0]
	candidatesDir := args[1]

	opts, err := options(cmd)
	if err != nil {
		return err
	}

	examples, err := ned.ReadExampleFiles([]string{examplesPath})
	if err != nil {
		return fmt.Errorf("reading examples: %w", err)
	}

	d, runID, err := tables.ReadCandidates(ctx, candidatesDir)
	if err != nil {
		return fmt.Errorf("reading candidates: %w", err)
	}

	report, err := evaluate.Evaluate(examples, nil, d, opts)
	if err != nil {
		return fmt.Errorf("evaluating candidates: %w", err)
	}

	data, err := sonic.ConfigStd.MarshalIndent(output{RunID: runID.String(), Report: report}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')

	outPath, err := cmd.Flags().GetString(FlagOut)
	if err != nil {
		return err
	}
	if outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}

func options(cmd *cobra.Command) (evaluate.Options, error) {
	var opts evaluate.Options
	includeNIL, err := cmd.Flags().GetBool(FlagIncludeNIL)
	if err != nil {
		return opts, err
	}
	includeUnlinked, err := cmd.Flags().GetBool(FlagIncludeUnlinked)
	if err != nil {
		return opts, err
	}
	topK, err := cmd.Flags().GetIntSlice(FlagTopK)
	if err != nil {
		return opts, err
	}

	opts.IgnoreNIL = !includeNIL
	opts.IgnoreUnlinked = !includeUnlinked
	opts.TopK = topK
	return opts, nil
}
