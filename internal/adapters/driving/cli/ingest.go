package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/citekit/internal/core/domain"
	"github.com/custodia-labs/citekit/internal/core/ports/driven"
	"github.com/custodia-labs/citekit/internal/logger"
)

var (
	ingestKB      string
	ingestAuthor  string
	ingestVersion string
	ingestJSON    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Index files into a knowledge base",
	Long: `Extracts structure from each file, builds its citation record, chunks
it on semantic boundaries, embeds the chunks and commits them.

Directories are walked recursively; hidden entries and files no extractor
supports are skipped. Unchanged documents are detected by content hash and
not re-indexed. Interrupting the command cancels documents not yet committed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestKB, "kb", "", "target knowledge base")
	ingestCmd.Flags().StringVar(&ingestAuthor, "author", "", "author recorded in citations")
	ingestCmd.Flags().StringVar(&ingestVersion, "doc-version", "", "document version recorded in citations")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the batch manifest as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if extractorRegistry == nil {
		return errors.New("extractor registry not configured")
	}
	if err := requireKB(ingestKB); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	docs, failed, err := collectDocuments(ctx, extractorRegistry, args)
	if err != nil {
		return err
	}
	if len(docs) == 0 && len(failed) == 0 {
		cmd.Println("No supported files found.")
		return nil
	}

	for i := range docs {
		docs[i].Metadata.Author = ingestAuthor
		docs[i].Metadata.Version = ingestVersion
	}

	manifest, err := ingestService.Ingest(ctx, ingestKB, docs)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	for id, reason := range failed {
		manifest.Documents[id] = domain.DocumentOutcome{Status: domain.StatusFailed, Error: reason}
	}

	if ingestJSON {
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal manifest: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	outputManifest(cmd, manifest)
	return nil
}

// collectDocuments expands paths into extracted documents. Files that fail
// extraction are returned in failed keyed by document id.
func collectDocuments(
	ctx context.Context,
	registry driven.ExtractorRegistry,
	paths []string,
) ([]domain.SourceDocument, map[string]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}

	seen := make(map[string]bool, len(files))
	docs := make([]domain.SourceDocument, 0, len(files))
	failed := make(map[string]string)
	for _, path := range files {
		extractor, err := registry.Get(path)
		if err != nil {
			logger.Debug("skipping %s: %v", path, err)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			failed[filepath.ToSlash(path)] = err.Error()
			continue
		}

		doc, err := extractor.Extract(ctx, path, content)
		if err != nil {
			failed[filepath.ToSlash(path)] = fmt.Sprintf("extract: %v", err)
			continue
		}
		if seen[doc.DocID] {
			continue
		}
		seen[doc.DocID] = true
		docs = append(docs, *doc)
	}
	return docs, failed, nil
}

func outputManifest(cmd *cobra.Command, manifest *domain.BatchManifest) {
	ids := make([]string, 0, len(manifest.Documents))
	for id := range manifest.Documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cmd.Printf("Batch %s into %s\n", mutedStyle.Render(manifest.BatchID), titleStyle.Render(manifest.KnowledgeBase))
	cmd.Println()
	for _, id := range ids {
		outcome := manifest.Documents[id]
		status := statusStyle(outcome.Status).Render(fmt.Sprintf("%-9s", outcome.Status))
		line := fmt.Sprintf("  %s %s", status, id)
		if outcome.ChunkCount > 0 {
			line += mutedStyle.Render(fmt.Sprintf(" (%d chunks)", outcome.ChunkCount))
		}
		cmd.Println(line)
		if outcome.Error != "" {
			cmd.Printf("            %s\n", errorStyle.Render(outcome.Error))
		}
	}
	cmd.Println()
	cmd.Printf("%d indexed, %d unchanged, %d failed, %d cancelled, %d rejected\n",
		manifest.Count(domain.StatusIndexed),
		manifest.Count(domain.StatusUnchanged),
		manifest.Count(domain.StatusFailed),
		manifest.Count(domain.StatusCancelled),
		manifest.Count(domain.StatusRejected),
	)
}
