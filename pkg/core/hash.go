package core

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode/utf8"

	"github.com/spaolacci/murmur3"
)

// DefaultBase is the rolling hash multiplier used when a job does not set one.
const DefaultBase uint64 = 31

const (
	StrategyRolling = "rolling"
	StrategyOrdinal = "ordinal"
	StrategyFNV     = "fnv"
	StrategyMurmur3 = "murmur3"
)

var (
	ErrUnknownStrategy     = errors.New("unknown partition strategy")
	ErrPartitionOutOfRange = errors.New("partition index out of range")
)

// Partitioner routes an intermediate key to one of numPartitions shards.
// Implementations must be pure: the same key and numPartitions always give
// the same index in [0, numPartitions).
type Partitioner interface {
	Partition(key string, numPartitions int) int
}

// PartitionConfig carries the routing parameters shared by every worker of
// a job.
type PartitionConfig struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
	Base     uint64 `mapstructure:"base" yaml:"base"`
}

func NewPartitioner(config PartitionConfig) (Partitioner, error) {
	switch strings.ToLower(config.Strategy) {
	case "", StrategyRolling:
		base := config.Base
		if base == 0 {
			base = DefaultBase
		}
		return RollingHash{Base: base}, nil
	case StrategyOrdinal:
		return Ordinal{}, nil
	case StrategyFNV:
		return FNV{}, nil
	case StrategyMurmur3:
		return Murmur3{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, config.Strategy)
	}
}

// RollingHash is a polynomial hash over the key's code points, reduced
// modulo the partition count after every step.
type RollingHash struct {
	Base uint64
}

func (h RollingHash) Partition(key string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	n := uint64(numPartitions)

	var acc uint64
	for _, r := range key {
		// acc < n <= MaxInt, so acc*Base+r fits in 128 bits and Rem64 is exact.
		hi, lo := bits.Mul64(acc, h.Base)
		lo, carry := bits.Add64(lo, uint64(r), 0)
		acc = bits.Rem64(hi+carry, lo, n)
	}
	return int(acc)
}

// Ordinal routes a key by the code point of its first character.
//
// Deprecated: the first character spreads keys poorly (all words starting
// with the same letter land together). Use RollingHash.
type Ordinal struct{}

func (Ordinal) Partition(key string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	if key == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(key)
	return int(uint64(r) % uint64(numPartitions))
}

type FNV struct{}

func Hash(value string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(value))
	return hash.Sum32()
}

func (FNV) Partition(key string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	return int(uint64(Hash(key)) % uint64(numPartitions))
}

type Murmur3 struct{}

func (Murmur3) Partition(key string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	return int(murmur3.Sum64([]byte(key)) % uint64(numPartitions))
}

// CheckPartition verifies that a partitioner result addresses an existing
// shard.
func CheckPartition(key string, partition, numPartitions int) error {
	if partition < 0 || partition >= numPartitions {
		return fmt.Errorf("%w: key %q routed to %d of %d", ErrPartitionOutOfRange, key, partition, numPartitions)
	}
	return nil
}
