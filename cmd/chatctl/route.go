package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rag-chat/internal/domain"
)

func newRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route <question>",
		Short: "Show the keyword route for a question",
		Long: `Apply the keyword routing rules the server falls back to when the
classifier is unavailable. Runs offline.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printRoute(cmd.OutOrStdout(), strings.Join(args, " "))
			return nil
		},
	}
}

func printRoute(out io.Writer, query string) {
	decision := domain.KeywordRoute(query)
	fmt.Fprintf(out, "route: %s\n", decision.Label())

	table := newTable(out)
	table.Header([]string{"Source", "Used"})
	_ = table.Bulk([][]string{
		{"weather", strconv.FormatBool(decision.UseWeather)},
		{"documents", strconv.FormatBool(decision.UseRetrieval)},
	})
	_ = table.Render()
}
