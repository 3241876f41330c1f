package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rag-chat/internal/domain"
)

func newCleanCmd() *cobra.Command {
	var (
		footers      []string
		splitCitations bool
	)
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Normalize passage text read from stdin",
		Long: `Run the passage text normalizer over stdin: footer lines are removed,
wrapped lines joined and whitespace collapsed.

Examples:
  chatctl clean < page.txt
  chatctl clean --footer 'Confidential' < page.txt
  echo "See [2, 4]." | chatctl clean --split-citations`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.InOrStdin(), cmd.OutOrStdout(), footers, splitCitations)
		},
	}
	cmd.Flags().StringArrayVar(&footers, "footer", nil, "extra footer regexp to strip (repeatable)")
	cmd.Flags().BoolVar(&splitCitations, "split-citations", false, "rewrite [2, 4] style citations as [2][4]")
	return cmd
}

func runClean(in io.Reader, out io.Writer, footers []string, splitCitations bool) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	normalizer, err := domain.NewTextNormalizer(append(append([]string{}, domain.DefaultFooterPatterns...), footers...)...)
	if err != nil {
		return err
	}
	text := normalizer.Clean(domain.NormalizeUnicode(string(raw)))
	if splitCitations {
		text = domain.SplitMultiCitations(text)
	}
	_, err = fmt.Fprintln(out, text)
	return err
}
