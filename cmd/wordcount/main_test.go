package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).RunContext(context.Background(), append([]string{"wordcount"}, args...))
	return out.String(), err
}

func TestPartitionCommand(t *testing.T) {
	out, err := run(t, "partition", "-n", "2", "the", "cat", "ran")
	require.NoError(t, err)
	require.Equal(t, "the\t1\ncat\t0\nran\t1\n", out)

	out, err = run(t, "partition", "-n", "13", "--base", "37", "hello")
	require.NoError(t, err)
	require.Equal(t, "hello\t0\n", out)

	_, err = run(t, "partition", "-n", "0", "the")
	require.Error(t, err)

	_, err = run(t, "partition", "--strategy", "crc32", "the")
	require.Error(t, err)
}

func TestJobsCommand(t *testing.T) {
	out, err := run(t, "jobs")
	require.NoError(t, err)
	require.Contains(t, out, "wordcount\tcounts occurrences of each word in the input text")
}

func TestRunCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("input.txt", []byte("the cat sat\nthe dog ran\n"), 0o644))

	out, err := run(t, "run",
		"--input", "*.txt",
		"--output", "out",
		"--reducers", "2",
		"--mappers", "1",
	)
	require.NoError(t, err)
	require.Contains(t, out, "completed: 2 records, 6 pairs")

	data, err := os.ReadFile(filepath.Join("out", "part-0001.tsv"))
	require.NoError(t, err)
	require.Equal(t, "ran\t1\nthe\t2\n", string(data))
}

func TestRunCommand_UnknownJob(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := run(t, "run", "--job", "grep", "--input", "*.txt", "--output", "out")
	require.ErrorContains(t, err, "job not found")
}
