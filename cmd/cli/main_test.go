package main

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridbench/internal/cli"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_MissingGridInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	platform := filepath.Join(dir, "gridbench.hcl")
	gridDir := filepath.Join(dir, "grid")
	require.NoError(t, os.WriteFile(platform, []byte(`grid_dir = "`+filepath.ToSlash(gridDir)+`"`), 0o600))

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"dump", "-m", "nb", "--platform-file", platform})

	require.Error(t, err)
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.Contains(t, err.Error(), filepath.Join(gridDir, "grid_nb_input.json"))
}

func TestRun_Dump(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	platform := filepath.Join(dir, "gridbench.hcl")
	gridDir := filepath.Join(dir, "grid")
	require.NoError(t, os.MkdirAll(gridDir, 0o755))
	require.NoError(t, os.WriteFile(platform, []byte(`grid_dir = "`+filepath.ToSlash(gridDir)+`"`), 0o600))
	input := `{"all": [{"alpha": [0.5, 1.0]}], "iris": [{"alpha": [2]}]}`
	require.NoError(t, os.WriteFile(filepath.Join(gridDir, "grid_nb_input.json"), []byte(input), 0o600))

	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"dump", "-m", "nb", "--platform-file", platform})

	require.NoError(t, err)
	require.Contains(t, out.String(), "Listing configuration input file (Grid)")
	require.Contains(t, out.String(), "iris")
}
