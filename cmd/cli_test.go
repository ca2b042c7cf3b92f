package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPotCommand(t *testing.T) {
	out, err := execute(t, "pot", "--top", "4", "--base", "2", "--height", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "(45.00°)")
	assert.Contains(t, out, "(90.00°)")
	assert.Contains(t, out, "volume 7.33")
}

func TestPotCommand_Invalid(t *testing.T) {
	_, err := execute(t, "pot", "--top", "1", "--base", "2", "--height", "1")
	assert.ErrorContains(t, err, "invalid pot")
}

func TestHashTokenCommand(t *testing.T) {
	out, err := execute(t, "hash-token", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestImportListShow(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	posts := filepath.Join(dir, "_posts")
	require.NoError(t, os.Mkdir(posts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(posts, "2020-03-14-pi-day.md"),
		[]byte("---\nlayout: post\nauthor: Archimedes\n---\n\nPi is irrational.\n"), 0o644))
	t.Setenv("MATHBLOG_POSTS_DIR", posts)
	t.Setenv("MATHBLOG_DATABASE_PATH", filepath.Join(dir, "test.db"))

	out, err := execute(t, "--config", "missing.yaml", "import")
	require.NoError(t, err)
	assert.Contains(t, out, "added 1")

	out, err = execute(t, "--config", "missing.yaml", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "pi-day")
	assert.Contains(t, out, "Archimedes")

	out, err = execute(t, "--config", "missing.yaml", "show", "pi-day")
	require.NoError(t, err)
	assert.Contains(t, out, "author: Archimedes")
	assert.Contains(t, out, "Pi is irrational.")

	_, err = execute(t, "--config", "missing.yaml", "show", "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestInitConfigCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mathblog.yaml")

	_, err := execute(t, "--config", path, "init-config")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = execute(t, "--config", path, "init-config")
	assert.ErrorContains(t, err, "already exists")
}
