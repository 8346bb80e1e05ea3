package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

var chunkFormat string

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Preview how a file is chunked",
	Long: `Extracts, indexes and chunks a file with the current chunking settings
without embedding or storing anything. Useful for tuning max_tokens,
overlap and min_chunk_size.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().StringVarP(&chunkFormat, "format", "f", formatText, "output format: text, json or yaml")
	rootCmd.AddCommand(chunkCmd)
}

// chunkPreview is the structured output of the chunk command.
type chunkPreview struct {
	Record *domain.CitationRecord `json:"record" yaml:"record"`
	Chunks []domain.Chunk         `json:"chunks" yaml:"chunks"`
}

func runChunk(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if extractorRegistry == nil {
		return errors.New("extractor registry not configured")
	}
	if err := validateFormat(chunkFormat); err != nil {
		return err
	}

	path := args[0]
	extractor, err := extractorRegistry.Get(path)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ctx := commandContext(cmd)
	doc, err := extractor.Extract(ctx, path, content)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", path, err)
	}

	record, chunks, err := ingestService.Preview(ctx, doc)
	if err != nil {
		return fmt.Errorf("chunking %s: %w", path, err)
	}

	if chunkFormat != formatText {
		return encode(cmd.OutOrStdout(), chunkFormat, chunkPreview{Record: record, Chunks: chunks})
	}

	cmd.Printf("%s: %d anchors, %d chunks (%s extractor)\n",
		titleStyle.Render(doc.DocID), len(record.Anchors), len(chunks), extractor.Name())
	cmd.Println()
	outputChunks(cmd, record, chunks)
	return nil
}
