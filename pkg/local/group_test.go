package local

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/wordcount/pkg/core"
)

type group struct {
	Key    string
	Values []int
}

func collectGroups(t *testing.T, g Grouper) []group {
	t.Helper()
	var groups []group
	require.NoError(t, g.Each(func(key string, values []int) error {
		groups = append(groups, group{Key: key, Values: values})
		return nil
	}))
	return groups
}

func TestGroupers(t *testing.T) {
	input := []core.Pair{
		{Key: "the", Value: 1},
		{Key: "cat", Value: 2},
		{Key: "the", Value: 3},
		{Key: "ant", Value: 4},
		{Key: "the", Value: 5},
	}
	want := []group{
		{Key: "ant", Values: []int{4}},
		{Key: "cat", Values: []int{2}},
		{Key: "the", Values: []int{1, 3, 5}},
	}

	for _, kind := range []string{GroupingMemory, GroupingBbolt} {
		t.Run(kind, func(t *testing.T) {
			g, err := NewGrouper(kind, t.TempDir(), 3)
			require.NoError(t, err)
			defer g.Close()

			require.NoError(t, g.Add(input[:2]...))
			require.NoError(t, g.Add(input[2:]...))
			require.Equal(t, want, collectGroups(t, g))
		})
	}
}

func TestGrouper_StopsOnError(t *testing.T) {
	g := &MemoryGrouper{}
	require.NoError(t, g.Add(core.Pair{Key: "a", Value: 1}, core.Pair{Key: "b", Value: 1}))

	boom := errors.New("boom")
	calls := 0
	err := g.Each(func(string, []int) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestBboltGrouper_CloseRemovesFile(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGrouper(GroupingBbolt, dir, 0)
	require.NoError(t, err)

	path := filepath.Join(dir, "group-0000.db")
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, g.Close())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestNewGrouper_Unknown(t *testing.T) {
	_, err := NewGrouper("redis", t.TempDir(), 0)
	require.Error(t, err)
}

func TestBboltGrouper_HotKey(t *testing.T) {
	const n = 3*spillBatchSize + 17

	g, err := NewGrouper(GroupingBbolt, t.TempDir(), 0)
	require.NoError(t, err)
	defer g.Close()

	want := make([]int, 0, n)
	batch := make([]core.Pair, 0, spillBatchSize)
	for i := range n {
		want = append(want, i)
		batch = append(batch, core.Pair{Key: "the", Value: i})
		if i%100 == 0 {
			batch = append(batch, core.Pair{Key: "cat", Value: -i})
		}
		if len(batch) >= spillBatchSize {
			require.NoError(t, g.Add(batch...))
			batch = batch[:0]
		}
	}
	require.NoError(t, g.Add(batch...))

	groups := collectGroups(t, g)
	require.Len(t, groups, 2)
	require.Equal(t, "cat", groups[0].Key)
	require.Len(t, groups[0].Values, (n+99)/100)
	require.Equal(t, "the", groups[1].Key)
	require.Equal(t, want, groups[1].Values)
}
