package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"resuradar/internal/extract"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <resume.pdf|resume.docx>",
	Short: "Score a résumé on its own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readDocument(cmd, args[0])
		if err != nil {
			return err
		}
		svc, err := newAnalyzer(cmd.Context())
		if err != nil {
			return err
		}
		result, err := svc.Analyze(cmd.Context(), text)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <resume.pdf|resume.docx> --job <job.txt>",
	Short: "Match a résumé against a job description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobPath, _ := cmd.Flags().GetString("job")
		if strings.TrimSpace(jobPath) == "" {
			return fmt.Errorf("--job is required")
		}
		text, err := readDocument(cmd, args[0])
		if err != nil {
			return err
		}
		jobText, err := readDocument(cmd, jobPath)
		if err != nil {
			return err
		}
		svc, err := newAnalyzer(cmd.Context())
		if err != nil {
			return err
		}
		result, err := svc.AnalyzeMatch(cmd.Context(), text, jobText)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	},
}

func init() {
	matchCmd.Flags().String("job", "", "job description file (.txt, .md, .pdf or .docx)")
	rootCmd.AddCommand(analyzeCmd, matchCmd)
}

// readDocument returns plain text files as-is and extracts PDF or DOCX content.
func readDocument(cmd *cobra.Command, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return string(data), nil
	}
	mimeType := extract.DetectMime("", filepath.Base(path), data)
	if !extract.Supported(mimeType) {
		return "", fmt.Errorf("%s: unsupported file type", path)
	}
	return extract.ExtractTextFromBytes(cmd.Context(), data, mimeType, filepath.Base(path))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
