package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/citekit/internal/core/domain"
)

func TestKBCmd_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range kbCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"create", "list", "status", "delete", "remove"} {
		assert.True(t, names[want], "missing kb %s", want)
	}
}

func TestKBCreateCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "kb", "create", "papers", "--description", "Research papers")
	require.NoError(t, err)
	assert.Contains(t, out, "Created knowledge base papers")
	assert.Contains(t, out, "768 dimensions")

	kb, ok := currentTestServices.knowledgeBase.kbs["papers"]
	require.True(t, ok)
	assert.Equal(t, "Research papers", kb.Description)
}

func TestKBCreateCmd_AlreadyExists(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "kb", "create", "docs")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestKBCreateCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := execute(t, "kb", "create")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestKBListCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "kb", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "docs")
	assert.Contains(t, out, "Product docs")
}

func TestKBListCmd_Empty(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	currentTestServices.knowledgeBase.kbs = map[string]domain.KnowledgeBase{}

	out, err := execute(t, "kb", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No knowledge bases")
}

func TestKBStatusCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "kb", "status", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "Documents:   3")
	assert.Contains(t, out, "Chunks:      17")
	assert.Contains(t, out, "hash (768 dimensions)")
}

func TestKBStatusCmd_NotFound(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "kb", "status", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKBDeleteCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "kb", "delete", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted knowledge base docs")
	assert.Empty(t, currentTestServices.knowledgeBase.kbs)
}

func TestKBRemoveCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "kb", "remove", "docs", "guide.md")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed guide.md from docs")
	assert.Equal(t, []string{"docs/guide.md"}, currentTestServices.ingest.removed)
}

func TestKBCmds_ServiceNotConfigured(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "create", args: []string{"kb", "create", "x"}},
		{name: "list", args: []string{"kb", "list"}},
		{name: "status", args: []string{"kb", "status", "x"}},
		{name: "delete", args: []string{"kb", "delete", "x"}},
	}

	defer resetFlags(rootCmd)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "knowledge base service not configured")
		})
	}
}
