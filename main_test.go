package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# local overrides\nBIZQUEST_TEST_PORT=4000\nBIZQUEST_TEST_KEPT=from-file\n"), 0o600))

	t.Setenv("BIZQUEST_TEST_KEPT", "from-env")
	t.Setenv("BIZQUEST_TEST_PORT", "")
	os.Unsetenv("BIZQUEST_TEST_PORT")

	require.NoError(t, loadEnv(path))
	assert.Equal(t, "4000", os.Getenv("BIZQUEST_TEST_PORT"))
	assert.Equal(t, "from-env", os.Getenv("BIZQUEST_TEST_KEPT"))
}

func TestLoadEnv_MissingFile(t *testing.T) {
	assert.NoError(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestPrintBuckets(t *testing.T) {
	snap := database.DefaultSnapshot()
	snap[0].Tasks = []database.Task{{ID: "a", Name: "Send invoices", Completed: true}}
	snap[0].RecomputeCompleted()
	snap[1].Tasks = []database.Task{{ID: "b", Name: "Call bank"}}

	var buf bytes.Buffer
	printBuckets(&buf, snap)

	out := buf.String()
	assert.Contains(t, out, "* 1. To Do 1\n    [x] Send invoices\n")
	assert.Contains(t, out, "  2. To Do 2\n    [ ] Call bank\n")
	assert.Contains(t, out, "  4. Daily Tasks\n")
}
