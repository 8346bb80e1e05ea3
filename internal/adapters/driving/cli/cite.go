package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

var (
	citeKB     string
	citeFormat string
)

var citeCmd = &cobra.Command{
	Use:   "cite",
	Short: "Inspect stored citations",
	Long:  `Show citation records, list chunks and render chunk citations.`,
}

var citeShowCmd = &cobra.Command{
	Use:   "show [doc_id]",
	Short: "Show the citation record of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runCiteShow,
}

var citeChunksCmd = &cobra.Command{
	Use:   "chunks [doc_id]",
	Short: "List the chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runCiteChunks,
}

var citeRenderCmd = &cobra.Command{
	Use:   "render [chunk_id]",
	Short: "Render the citation text of a chunk",
	Args:  cobra.ExactArgs(1),
	RunE:  runCiteRender,
}

func init() {
	citeCmd.PersistentFlags().StringVar(&citeKB, "kb", "", "knowledge base holding the document")
	citeShowCmd.Flags().StringVarP(&citeFormat, "format", "f", formatText, "output format: text, json or yaml")
	citeChunksCmd.Flags().StringVarP(&citeFormat, "format", "f", formatText, "output format: text, json or yaml")
	citeCmd.AddCommand(citeShowCmd)
	citeCmd.AddCommand(citeChunksCmd)
	citeCmd.AddCommand(citeRenderCmd)
	rootCmd.AddCommand(citeCmd)
}

func runCiteShow(cmd *cobra.Command, args []string) error {
	if citationService == nil {
		return errors.New("citation service not configured")
	}
	if err := requireKB(citeKB); err != nil {
		return err
	}
	if err := validateFormat(citeFormat); err != nil {
		return err
	}

	record, err := citationService.GetRecord(commandContext(cmd), citeKB, args[0])
	if err != nil {
		return fmt.Errorf("failed to get citation record: %w", err)
	}

	if citeFormat != formatText {
		return encode(cmd.OutOrStdout(), citeFormat, record)
	}

	outputRecord(cmd, record)
	return nil
}

func runCiteChunks(cmd *cobra.Command, args []string) error {
	if citationService == nil {
		return errors.New("citation service not configured")
	}
	if err := requireKB(citeKB); err != nil {
		return err
	}
	if err := validateFormat(citeFormat); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	chunks, err := citationService.GetChunks(ctx, citeKB, args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	if citeFormat != formatText {
		return encode(cmd.OutOrStdout(), citeFormat, chunks)
	}

	record, err := citationService.GetRecord(ctx, citeKB, args[0])
	if err != nil {
		return fmt.Errorf("failed to get citation record: %w", err)
	}
	outputChunks(cmd, record, chunks)
	return nil
}

func runCiteRender(cmd *cobra.Command, args []string) error {
	if citationService == nil {
		return errors.New("citation service not configured")
	}
	if err := requireKB(citeKB); err != nil {
		return err
	}

	text, err := citationService.Cite(commandContext(cmd), citeKB, args[0])
	if err != nil {
		return fmt.Errorf("failed to cite chunk: %w", err)
	}

	cmd.Println(text)
	return nil
}

func outputRecord(cmd *cobra.Command, record *domain.CitationRecord) {
	cmd.Println(titleStyle.Render(record.Title))
	cmd.Printf("  Document: %s\n", record.DocID)
	cmd.Printf("  Format:   %s\n", record.CitationFormat)
	if record.Author != "" {
		cmd.Printf("  Author:   %s\n", record.Author)
	}
	if record.Version != "" {
		cmd.Printf("  Version:  %s\n", record.Version)
	}
	if record.RepositoryPath != "" {
		cmd.Printf("  Path:     %s\n", record.RepositoryPath)
	}
	cmd.Println()
	cmd.Printf("Anchors (%d):\n", len(record.Anchors))
	for _, a := range record.Anchors {
		cmd.Printf("  %s\n", a.CitationKey)
		cmd.Printf("      %s\n", mutedStyle.Render(record.CitationText(a.CitationKey)))
	}
}

func outputChunks(cmd *cobra.Command, record *domain.CitationRecord, chunks []domain.Chunk) {
	if len(chunks) == 0 {
		cmd.Println("No chunks.")
		return
	}
	for i := range chunks {
		c := &chunks[i]
		cmd.Printf("[%d] %s %s\n", c.SequenceNo, titleStyle.Render(c.ChunkID),
			mutedStyle.Render(fmt.Sprintf("(%d tokens, %d overlap)", c.TokenCount, c.OverlapTokensWithPrev)))
		if record != nil {
			cmd.Printf("    %s\n", record.CitationText(c.PrimaryAnchor))
		}
		cmd.Printf("    anchors: %v\n", c.AnchorRefs)
		cmd.Printf("    %s\n", snippet(c.Text, 160))
		cmd.Println()
	}
}
