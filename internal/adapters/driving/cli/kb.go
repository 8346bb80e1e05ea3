package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var kbDescription string

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge bases",
	Long: `Create, list, inspect and delete knowledge bases.

A knowledge base pins the embedding model and dimension used by its first
ingest; every later ingest must use the same dimension.`,
}

var kbCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBCreate,
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases",
	Args:  cobra.NoArgs,
	RunE:  runKBList,
}

var kbStatusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Show document and chunk counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBStatus,
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a knowledge base and everything indexed into it",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBDelete,
}

var kbRemoveCmd = &cobra.Command{
	Use:   "remove [name] [doc_id]",
	Short: "Remove one document and its chunks",
	Args:  cobra.ExactArgs(2),
	RunE:  runKBRemove,
}

func init() {
	kbCreateCmd.Flags().StringVarP(&kbDescription, "description", "d", "", "free text description")
	kbCmd.AddCommand(kbCreateCmd)
	kbCmd.AddCommand(kbListCmd)
	kbCmd.AddCommand(kbStatusCmd)
	kbCmd.AddCommand(kbDeleteCmd)
	kbCmd.AddCommand(kbRemoveCmd)
	rootCmd.AddCommand(kbCmd)
}

func runKBCreate(cmd *cobra.Command, args []string) error {
	if knowledgeBaseService == nil {
		return errors.New("knowledge base service not configured")
	}

	kb, err := knowledgeBaseService.Create(commandContext(cmd), args[0], kbDescription)
	if err != nil {
		return fmt.Errorf("failed to create knowledge base: %w", err)
	}

	cmd.Printf("Created knowledge base %s\n", titleStyle.Render(kb.Name))
	if kb.Dimensions > 0 {
		cmd.Printf("  Embedding: %s (%d dimensions)\n", kb.EmbeddingModel, kb.Dimensions)
	}
	return nil
}

func runKBList(cmd *cobra.Command, _ []string) error {
	if knowledgeBaseService == nil {
		return errors.New("knowledge base service not configured")
	}

	kbs, err := knowledgeBaseService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list knowledge bases: %w", err)
	}

	if len(kbs) == 0 {
		cmd.Println("No knowledge bases. Create one with: citekit kb create <name>")
		return nil
	}

	cmd.Println(titleStyle.Render("Knowledge bases:"))
	for i := range kbs {
		line := fmt.Sprintf("  %s", kbs[i].Name)
		if kbs[i].Description != "" {
			line += " " + mutedStyle.Render("- "+kbs[i].Description)
		}
		cmd.Println(line)
	}
	return nil
}

func runKBStatus(cmd *cobra.Command, args []string) error {
	if knowledgeBaseService == nil {
		return errors.New("knowledge base service not configured")
	}

	status, err := knowledgeBaseService.Status(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	kb := status.KnowledgeBase
	cmd.Println(titleStyle.Render(kb.Name))
	if kb.Description != "" {
		cmd.Printf("  Description: %s\n", kb.Description)
	}
	if kb.Dimensions > 0 {
		cmd.Printf("  Embedding:   %s (%d dimensions)\n", kb.EmbeddingModel, kb.Dimensions)
	} else {
		cmd.Println("  Embedding:   not pinned")
	}
	cmd.Printf("  Documents:   %d\n", status.DocumentCount)
	cmd.Printf("  Chunks:      %d\n", status.ChunkCount)
	cmd.Printf("  Updated:     %s\n", kb.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func runKBDelete(cmd *cobra.Command, args []string) error {
	if knowledgeBaseService == nil {
		return errors.New("knowledge base service not configured")
	}

	if err := knowledgeBaseService.Delete(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete knowledge base: %w", err)
	}

	cmd.Printf("Deleted knowledge base %s\n", args[0])
	return nil
}

func runKBRemove(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.Remove(commandContext(cmd), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}

	cmd.Printf("Removed %s from %s\n", args[1], args[0])
	return nil
}
