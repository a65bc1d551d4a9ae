package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/lexrag"
	"github.com/poiesic/lexrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runApp(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"lexrag"}, args...))
	return stdout.String(), stderr.String(), err
}

func findFlag(cmd *cli.Command, name string) cli.Flag {
	for _, flag := range cmd.Flags {
		for _, n := range flag.Names() {
			if n == name {
				return flag
			}
		}
	}
	return nil
}

func TestCommands(t *testing.T) {
	app := newApp()
	names := make([]string, len(app.Commands))
	for i, cmd := range app.Commands {
		names[i] = cmd.Name
	}
	assert.Equal(t, []string{"ask", "chat", "history", "forget", "seed", "reembed", "stats"}, names)

	t.Run("user has a default", func(t *testing.T) {
		flag, ok := findFlag(app.Commands[0], "user").(*cli.StringFlag)
		require.True(t, ok)
		assert.Equal(t, "default", flag.Value)
	})

	t.Run("chat can save on exit", func(t *testing.T) {
		assert.NotNil(t, findFlag(app.Commands[1], "save"))
		assert.Nil(t, findFlag(app.Commands[0], "save"))
	})

	t.Run("history limit defaults to 20", func(t *testing.T) {
		flag, ok := findFlag(app.Commands[2], "limit").(*cli.IntFlag)
		require.True(t, ok)
		assert.Equal(t, 20, flag.Value)
	})
}

func TestParseFilter(t *testing.T) {
	assert.Nil(t, parseFilter("", false))
	assert.Nil(t, parseFilter(" > ", false))

	filter := parseFilter("Livre I > Titre II", false)
	require.NotNil(t, filter)
	assert.Equal(t, []string{"Livre I", "Titre II"}, filter.Labels)
	assert.False(t, filter.Exact)

	assert.True(t, parseFilter("Livre I", true).Exact)
}

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	printResponse(&buf, &lexrag.Response{
		Answer: "Trente jours (Article 113).",
		Sources: []lexrag.Source{
			{Rank: 1, Label: "Article 113", Score: 0.92, Hierarchy: "Livre I > Titre II > Article 113"},
		},
	})
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Trente jours (Article 113).\n"))
	assert.Contains(t, out, "[1] Article 113 (0.92) Livre I > Titre II > Article 113")

	buf.Reset()
	printResponse(&buf, &lexrag.Response{
		Answer:        "Réponse.",
		ThinkingChain: &core.ThinkingChain{OriginalQuery: "Question ?", LegalAnalysis: "Analyse."},
	})
	assert.Contains(t, buf.String(), "Question ?")
	assert.NotContains(t, buf.String(), "Sources:")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview("a \n b", 10))
	assert.Equal(t, "éééé...", preview("éééééé", 4))
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	out, _, err := runApp(t, "", "--data-dir", dir, "--log-level", "error", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Collection:       passages")
	assert.Contains(t, out, "Passages:         0")
	assert.Contains(t, out, "Reasoning stages: 3")

	_, err = os.Stat(filepath.Join(dir, "memory"))
	assert.NoError(t, err, "memory store is created under the data dir")
}

func TestHistoryAndForgetOnEmptyStore(t *testing.T) {
	dir := t.TempDir()

	out, _, err := runApp(t, "", "--data-dir", dir, "--log-level", "error", "history", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved sessions.")

	out, _, err = runApp(t, "", "--data-dir", dir, "--log-level", "error", "forget", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 0 saved sessions for u1.")
}

func TestReembedEmptyStore(t *testing.T) {
	dir := t.TempDir()
	out, errOut, err := runApp(t, "", "--data-dir", dir, "--log-level", "error", "reembed")
	require.NoError(t, err)
	assert.Contains(t, out, "Re-embedded 0 saved sessions.")
	assert.Contains(t, errOut, "No long-term records found")

	_, _, err = runApp(t, "", "--data-dir", dir, "reembed", "--batch-size", "0")
	assert.ErrorContains(t, err, "batch-size must be greater than 0")
}

func TestChatQuitWithoutQuestions(t *testing.T) {
	out, _, err := runApp(t, "/save\n/clear\n/quit\n", "--data-dir", t.TempDir(), "--log-level", "error", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to save yet.")
	assert.Contains(t, out, "Session cleared.")
}

func TestArgumentErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := runApp(t, "", "--data-dir", dir, "ask")
	assert.ErrorContains(t, err, "question is required")

	_, _, err = runApp(t, "", "--data-dir", dir, "seed")
	assert.ErrorContains(t, err, "chunk file is required")

	_, _, err = runApp(t, "", "--data-dir", dir, "seed", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, _, err = runApp(t, "", "--data-dir", dir, "--log-level", "loud", "stats")
	assert.ErrorContains(t, err, "invalid log level")
}
