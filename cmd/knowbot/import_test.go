package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bots.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bots:
  - name: Acme
    tone: cheerful
    lead_threshold: 0.3
    quick_prompts: ["What do you sell?"]
    websites:
      - https://acme.test/
    documents:
      - path: /srv/docs/returns.pdf
        name: Returns policy
  - name: Globex
    websites:
      - https://globex.test/
`), 0o644))

	out, err := run(t, dir, "import", "--file", path)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "\tAcme"))
	assert.True(t, strings.HasSuffix(lines[1], "\tGlobex"))

	acmeID, _, _ := strings.Cut(lines[0], "\t")
	sources, err := run(t, dir, "source", "list", "--bot", acmeID)
	require.NoError(t, err)
	assert.Len(t, strings.Split(sources, "\n"), 2)
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()

	t.Run("no bots", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("bots: []\n"), 0o644))
		_, err := readManifest(path)
		assert.ErrorContains(t, err, "defines no bots")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readManifest(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("lead threshold defaults only when absent", func(t *testing.T) {
		path := filepath.Join(dir, "zero.yaml")
		require.NoError(t, os.WriteFile(path, []byte("bots:\n  - name: A\n    lead_threshold: 0\n  - name: B\n"), 0o644))
		m, err := readManifest(path)
		require.NoError(t, err)
		require.NotNil(t, m.Bots[0].LeadThreshold)
		assert.Zero(t, *m.Bots[0].LeadThreshold)
		assert.Nil(t, m.Bots[1].LeadThreshold)
	})
}
