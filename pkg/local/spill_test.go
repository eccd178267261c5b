package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nemanja-m/wordcount/pkg/core"
)

func readAllSpill(t *testing.T, path string) []core.Pair {
	t.Helper()
	var got []core.Pair
	require.NoError(t, ReadSpill(path, func(kv core.Pair) error {
		got = append(got, kv)
		return nil
	}))
	return got
}

func TestSpill_PreservesOrderAndValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map-0000", "part-0001.bin")
	want := []core.Pair{
		{Key: "the", Value: 1},
		{Key: "", Value: 0},
		{Key: "négatif", Value: -7},
		{Key: "the", Value: 1},
	}

	w, err := CreateSpill(path)
	require.NoError(t, err)
	for _, kv := range want {
		require.NoError(t, w.Write(kv))
	}
	require.Equal(t, len(want), w.Count())
	require.NoError(t, w.Close())

	require.Equal(t, want, readAllSpill(t, path))
}

func TestSpill_SkipsUnknownFields(t *testing.T) {
	var record []byte
	record = protowire.AppendTag(record, 9, protowire.BytesType)
	record = protowire.AppendString(record, "ignored")
	record = appendPair(record, core.Pair{Key: "word", Value: 3})

	path := filepath.Join(t.TempDir(), "part.bin")
	require.NoError(t, os.WriteFile(path, protowire.AppendBytes(nil, record), 0o644))

	require.Equal(t, []core.Pair{{Key: "word", Value: 3}}, readAllSpill(t, path))
}

func TestSpill_Truncated(t *testing.T) {
	frame := protowire.AppendBytes(nil, appendPair(nil, core.Pair{Key: "word", Value: 1}))

	path := filepath.Join(t.TempDir(), "part.bin")
	require.NoError(t, os.WriteFile(path, frame[:len(frame)-2], 0o644))

	err := ReadSpill(path, func(core.Pair) error { return nil })
	require.ErrorIs(t, err, ErrCorruptSpill)
}

func TestSpill_MissingFile(t *testing.T) {
	err := ReadSpill(filepath.Join(t.TempDir(), "missing.bin"), func(core.Pair) error { return nil })
	require.True(t, os.IsNotExist(err))
}
