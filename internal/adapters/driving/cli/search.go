package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

var (
	searchKB       string
	searchLimit    int
	searchMinScore float64
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a knowledge base",
	Long: `Performs hybrid search across one knowledge base.
Vector candidates are re-scored with a keyword (BM25) signal and fused with
the configured weights. Every result carries its citation.

If the embedding provider is unavailable the search falls back to keyword
scores only and the response is marked degraded.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchKB, "kb", "", "knowledge base to search")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (0 = search.top_k)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "minimum fused score (default search.min_score)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}
	if err := requireKB(searchKB); err != nil {
		return err
	}

	opts := domain.SearchOptions{TopK: searchLimit}
	if cmd.Flags().Changed("min-score") {
		opts.MinScore = &searchMinScore
	}

	resp, err := searchService.Search(commandContext(cmd), searchKB, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, resp)
	}

	outputSearchTable(cmd, resp)
	return nil
}

func outputSearchJSON(cmd *cobra.Command, resp *domain.SearchResponse) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) {
	for _, w := range resp.Warnings {
		cmd.Println(warningStyle.Render("warning: " + w))
	}
	if resp.Degraded {
		cmd.Println(warningStyle.Render("Keyword-only results (embedding unavailable)."))
	}

	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range resp.Results {
		r := &resp.Results[i]
		cmd.Printf("  [%d] %s %s\n", i+1, titleStyle.Render(r.CitationText),
			mutedStyle.Render(fmt.Sprintf("(%.2f)", r.Score)))
		cmd.Printf("      %s\n", mutedStyle.Render(fmt.Sprintf("%s  vector %.2f  keyword %.2f",
			r.ChunkID, r.VectorScore, r.KeywordScore)))
		if snippet := snippet(r.Text, 200); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
}

// snippet collapses whitespace and truncates text to at most n runes.
func snippet(text string, n int) string {
	s := strings.Join(strings.Fields(text), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
