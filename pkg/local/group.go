package local

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nemanja-m/wordcount/pkg/core"
)

const (
	GroupingMemory = "memory"
	GroupingBbolt  = "bbolt"
)

// Grouper collects the pairs of one partition and hands them back grouped by
// key, in key order. Each group is complete: Each is only called after every
// pair of the partition has been added.
type Grouper interface {
	Add(kvs ...core.Pair) error
	Each(fn func(key string, values []int) error) error
	Close() error
}

func NewGrouper(kind, dir string, partition int) (Grouper, error) {
	switch strings.ToLower(kind) {
	case "", GroupingMemory:
		return &MemoryGrouper{}, nil
	case GroupingBbolt:
		return NewBboltGrouper(filepath.Join(dir, PartitionFilename("group", partition, "db")))
	default:
		return nil, fmt.Errorf("unknown grouping backend: %s", kind)
	}
}

type MemoryGrouper struct {
	records []core.Pair
}

func (g *MemoryGrouper) Add(kvs ...core.Pair) error {
	g.records = append(g.records, kvs...)
	return nil
}

func (g *MemoryGrouper) Each(fn func(key string, values []int) error) error {
	slices.SortStableFunc(g.records, func(left, right core.Pair) int {
		return cmp.Compare(left.Key, right.Key)
	})

	for i := 0; i < len(g.records); {
		key := g.records[i].Key
		values := []int{}

		for i < len(g.records) && g.records[i].Key == key {
			values = append(values, g.records[i].Value)
			i++
		}

		if err := fn(key, values); err != nil {
			return err
		}
	}
	return nil
}

func (g *MemoryGrouper) Close() error {
	g.records = nil
	return nil
}

var groupBucket = []byte("values")

// BboltGrouper keeps the values of every key in an on-disk bucket, so a
// partition larger than memory can still be grouped. Each key gets a nested
// bucket holding one zigzag varint per value under a big-endian sequence
// number, which keeps appends constant-time and values in insertion order.
type BboltGrouper struct {
	db *bbolt.DB
}

func NewBboltGrouper(path string) (*BboltGrouper, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 30 * time.Second, NoSync: true})
	if err != nil {
		return nil, fmt.Errorf("create bbolt grouper: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(groupBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bbolt grouper: %w", err)
	}

	return &BboltGrouper{db: db}, nil
}

func (g *BboltGrouper) Add(kvs ...core.Pair) error {
	if len(kvs) == 0 {
		return nil
	}
	return g.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(groupBucket)
		buckets := make(map[string]*bbolt.Bucket)
		for _, kv := range kvs {
			buck, ok := buckets[kv.Key]
			if !ok {
				var err error
				buck, err = root.CreateBucketIfNotExists([]byte(kv.Key))
				if err != nil {
					return fmt.Errorf("key %q: %w", kv.Key, err)
				}
				buckets[kv.Key] = buck
			}

			seq, err := buck.NextSequence()
			if err != nil {
				return err
			}
			// Keys and values must stay valid until the transaction ends.
			value := protowire.AppendVarint(nil, protowire.EncodeZigZag(int64(kv.Value)))
			if err := buck.Put(binary.BigEndian.AppendUint64(nil, seq), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (g *BboltGrouper) Each(fn func(key string, values []int) error) error {
	return g.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(groupBucket)
		c := root.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if v != nil {
				return fmt.Errorf("key %q: not a value bucket", k)
			}
			buck := root.Bucket(k)
			values := make([]int, 0, buck.Sequence())
			err := buck.ForEach(func(_, v []byte) error {
				value, err := decodeValue(v)
				if err != nil {
					return err
				}
				values = append(values, value)
				return nil
			})
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			if err := fn(string(k), values); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database and removes its file.
func (g *BboltGrouper) Close() error {
	path := g.db.Path()
	if err := g.db.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

func decodeValue(b []byte) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	if n != len(b) {
		return 0, fmt.Errorf("%d trailing bytes after value", len(b)-n)
	}
	return int(protowire.DecodeZigZag(v)), nil
}
