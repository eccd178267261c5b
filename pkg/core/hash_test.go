package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollingHash_KnownValues(t *testing.T) {
	tests := []struct {
		name          string
		key           string
		numPartitions int
		base          uint64
		want          int
	}{
		{name: "two characters", key: "ab", numPartitions: 1000, base: 31, want: 105},
		{name: "wraps to zero", key: "hello", numPartitions: 7, base: 31, want: 0},
		{name: "four partitions", key: "hello", numPartitions: 4, base: 31, want: 2},
		{name: "non ascii", key: "héllo", numPartitions: 13, base: 31, want: 2},
		{name: "other base", key: "hello", numPartitions: 13, base: 37, want: 0},
		{name: "large modulus", key: "hello", numPartitions: 1 << 62, base: 31, want: 99162322},
		{name: "long key", key: "supercalifragilisticexpialidocious", numPartitions: 1000003, base: 31, want: 438746},
		{name: "long key other base", key: "supercalifragilisticexpialidocious", numPartitions: 1000003, base: 131, want: 441846},
		{name: "intermediate exceeds 64 bits", key: "supercalifragilisticexpialidocious", numPartitions: math.MaxInt64, base: 31, want: 2947127027494903491},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RollingHash{Base: tt.base}.Partition(tt.key, tt.numPartitions)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRollingHash_EdgeCases(t *testing.T) {
	h := RollingHash{Base: DefaultBase}

	require.Equal(t, 0, h.Partition("", 5))
	require.Equal(t, 0, h.Partition("anything", 0))
	require.Equal(t, 0, h.Partition("anything", -3))

	for _, key := range []string{"a", "the", "zebra", "ünïcode", "x y z"} {
		require.Equal(t, 0, h.Partition(key, 1), key)
	}
}

func TestPartitioners_Range(t *testing.T) {
	keys := []string{"a", "the", "cat", "sat", "dog", "ran", "Ω", "日本語", "supercalifragilisticexpialidocious"}
	partitioners := map[string]Partitioner{
		StrategyRolling: RollingHash{Base: DefaultBase},
		StrategyOrdinal: Ordinal{},
		StrategyFNV:     FNV{},
		StrategyMurmur3: Murmur3{},
	}

	for name, p := range partitioners {
		t.Run(name, func(t *testing.T) {
			for n := 1; n <= 64; n++ {
				for _, key := range keys {
					got := p.Partition(key, n)
					require.GreaterOrEqual(t, got, 0)
					require.Less(t, got, n)
					require.Equal(t, got, p.Partition(key, n))
				}
			}
		})
	}
}

func TestOrdinal_Bounded(t *testing.T) {
	p := Ordinal{}

	// 'a' is 97; the prior design returned 97 regardless of the partition count.
	require.Equal(t, 7, p.Partition("apple", 10))
	require.Equal(t, 0, p.Partition("", 10))
	require.Equal(t, 0, p.Partition("apple", 1))
	require.Equal(t, 937%16, p.Partition("Ωmega", 16))
}

func TestNewPartitioner(t *testing.T) {
	tests := []struct {
		name    string
		config  PartitionConfig
		want    Partitioner
		wantErr error
	}{
		{name: "empty defaults to rolling", config: PartitionConfig{}, want: RollingHash{Base: DefaultBase}},
		{name: "rolling with base", config: PartitionConfig{Strategy: "rolling", Base: 131}, want: RollingHash{Base: 131}},
		{name: "case insensitive", config: PartitionConfig{Strategy: "FNV"}, want: FNV{}},
		{name: "ordinal", config: PartitionConfig{Strategy: "ordinal"}, want: Ordinal{}},
		{name: "murmur3", config: PartitionConfig{Strategy: "murmur3"}, want: Murmur3{}},
		{name: "unknown", config: PartitionConfig{Strategy: "crc32"}, wantErr: ErrUnknownStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewPartitioner(tt.config)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCheckPartition(t *testing.T) {
	require.NoError(t, CheckPartition("k", 0, 1))
	require.NoError(t, CheckPartition("k", 3, 4))
	require.ErrorIs(t, CheckPartition("k", 4, 4), ErrPartitionOutOfRange)
	require.ErrorIs(t, CheckPartition("k", -1, 4), ErrPartitionOutOfRange)
}
