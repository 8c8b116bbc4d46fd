package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SECRETS_FILE", "")
	cmd := getRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := getRootCmd()
	require.NotNil(t, cmd)

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ping", "tables", "ensure", "report", "import", "rebuild-summary"} {
		assert.True(t, names[want], "%s subcommand should exist", want)
	}
}

func TestRootCommand_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "registryctl")
	assert.Contains(t, out, "Available Commands")
}

func TestEnsureThenTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")

	out, err := run(t, "--sqlite-path", path, "ensure", "organizations", "patient_counts")
	require.NoError(t, err)
	assert.Contains(t, out, "ensured organizations")
	assert.Contains(t, out, "ensured patient_counts")

	out, err = run(t, "--sqlite-path", path, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "patient_counts")
	assert.NotContains(t, out, "system_logs")
}

func TestEnsure_UnknownTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	_, err := run(t, "--sqlite-path", path, "ensure", "no_such_table")
	require.Error(t, err)
}

func TestPing_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	out, err := run(t, "--sqlite-path", path, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, `"ok": true`)
	assert.Contains(t, out, `"dialect": "sqlite"`)
}

func TestRebuildSummary_EmptySource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	out, err := run(t, "--sqlite-path", path, "rebuild-summary")
	require.NoError(t, err)
	assert.Contains(t, out, "age_group_summary rebuilt from age_groups: 0 row(s)")
}

func TestImport_RejectsNonXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	_, err := run(t, "--sqlite-path", path, "import", "patient_counts", "data.csv")
	require.Error(t, err)
}
