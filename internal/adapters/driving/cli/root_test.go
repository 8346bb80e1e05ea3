package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs rootCmd with args and returns the combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "citekit", rootCmd.Use)
}

func TestRootCmd_HasGlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "data-dir", "verbose"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "v", rootCmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"kb", "ingest", "search", "cite", "chunk", "settings", "mcp", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

// TestBootstrap tests that the bootstrap function runs once per command and
// that services are closed afterwards.
func TestBootstrap(t *testing.T) {
	defer SetBootstrap(nil)
	defer SetServices(nil)

	var gotOpts Options
	calls := 0
	closed := 0
	search := &mockSearchService{}
	SetBootstrap(func(_ context.Context, opts Options) (*Services, error) {
		calls++
		gotOpts = opts
		return &Services{
			Search: search,
			Close: func() error {
				closed++
				return nil
			},
		}, nil
	})
	defer resetFlags(rootCmd)

	_, err := execute(t, "--data-dir", "/tmp/citekit-test", "search", "--kb", "docs", "query")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, closed)
	assert.Equal(t, "/tmp/citekit-test", gotOpts.DataDir)
	assert.Equal(t, "query", search.query)
	assert.Nil(t, services)
}

func TestBootstrap_Error(t *testing.T) {
	defer SetBootstrap(nil)
	defer resetFlags(rootCmd)
	SetBootstrap(func(context.Context, Options) (*Services, error) {
		return nil, errors.New("open database: locked")
	})

	_, err := execute(t, "kb", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}

func TestBootstrap_SkippedForVersion(t *testing.T) {
	defer SetBootstrap(nil)
	SetBootstrap(func(context.Context, Options) (*Services, error) {
		t.Fatal("bootstrap should not run for version")
		return nil, nil
	})

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "citekit version")
}

func TestSetServices_Nil(t *testing.T) {
	cleanup := setupTestServices()
	cleanup()

	assert.Nil(t, searchService)
	assert.Nil(t, ingestService)
	assert.Nil(t, knowledgeBaseService)
	assert.Nil(t, citationService)
	assert.Nil(t, settingsService)
	assert.Nil(t, extractorRegistry)
}
