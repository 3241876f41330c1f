package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"rag-chat/internal/domain"
)

const passagePreviewRunes = 90

func newAskCmd() *cobra.Command {
	var showSources bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the server a question and stream the answer",
		Long: `Send a question to POST /chat, print the answer as it streams and
list the cited passages afterwards.

Examples:
  chatctl ask "What is the weather in Florence?"
  chatctl ask --sources=false "Which hotel do we stay at in Siena?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			citations, err := ask(cmd.Context(), http.DefaultClient, serverURL, strings.Join(args, " "), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if showSources {
				printCitations(cmd.OutOrStdout(), citations)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showSources, "sources", true, "print the citation table")
	return cmd
}

// ask posts message and copies the answer prose to out while it streams. The
// citation map trailing the prose is decoded and returned.
func ask(ctx context.Context, client *http.Client, baseURL, message string, out io.Writer) (domain.CitationMap, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&detail)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, detail.Detail)
	}

	printer := &proseWriter{out: out}
	if _, err := io.Copy(printer, resp.Body); err != nil && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("failed to read answer: %w", err)
	}
	printer.finish()
	fmt.Fprintln(out)

	_, citations, found, err := domain.SplitCitationMarker(printer.buf.String())
	if err != nil {
		return nil, err
	}
	if !found {
		return domain.CitationMap{}, nil
	}
	return citations, nil
}

// proseWriter forwards streamed text to out until the citation map marker
// shows up. Bytes that could start the marker are held back.
type proseWriter struct {
	out     io.Writer
	buf     bytes.Buffer
	printed int
	done    bool
}

func (p *proseWriter) Write(chunk []byte) (int, error) {
	p.buf.Write(chunk)
	if p.done {
		return len(chunk), nil
	}
	full := p.buf.String()
	marker := strings.TrimLeft(domain.CitationMapMarker, "\n")
	if idx := strings.Index(full, marker); idx >= 0 {
		p.emit(strings.TrimRight(full[:idx], "\n"))
		p.done = true
		return len(chunk), nil
	}
	p.emit(full[:max(p.printed, len(full)-len(marker)-2)])
	return len(chunk), nil
}

func (p *proseWriter) finish() {
	if !p.done {
		p.emit(p.buf.String())
	}
}

func (p *proseWriter) emit(upTo string) {
	if len(upTo) > p.printed {
		fmt.Fprint(p.out, upTo[p.printed:])
		p.printed = len(upTo)
	}
}

func printCitations(out io.Writer, citations domain.CitationMap) {
	if len(citations) == 0 {
		return
	}
	printHeader(out, "Sources")
	table := newTable(out)
	table.Header([]string{"#", "Passage"})
	rows := make([][]string, 0, len(citations))
	for _, c := range citations {
		rows = append(rows, []string{c.Index, preview(c.Text, passagePreviewRunes)})
	}
	_ = table.Bulk(rows)
	_ = table.Render()
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
