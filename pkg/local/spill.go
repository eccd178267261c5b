package local

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nemanja-m/wordcount/pkg/core"
)

// Spill files hold intermediate pairs in protobuf wire format. Every pair is
// a length-delimited record with the key in field 1 and the value in field 2.
const (
	spillKeyField   protowire.Number = 1
	spillValueField protowire.Number = 2
)

var ErrCorruptSpill = errors.New("corrupt spill file")

type SpillWriter struct {
	file  *os.File
	w     *bufio.Writer
	rec   []byte
	frame []byte
	n     int
}

func CreateSpill(filePath string) (*SpillWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	return &SpillWriter{file: file, w: bufio.NewWriter(file)}, nil
}

func (s *SpillWriter) Write(kv core.Pair) error {
	s.rec = appendPair(s.rec[:0], kv)
	s.frame = protowire.AppendBytes(s.frame[:0], s.rec)
	if _, err := s.w.Write(s.frame); err != nil {
		return err
	}
	s.n++
	return nil
}

// Count returns the number of pairs written so far.
func (s *SpillWriter) Count() int {
	return s.n
}

func (s *SpillWriter) Close() error {
	if err := s.w.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func appendPair(b []byte, kv core.Pair) []byte {
	b = protowire.AppendTag(b, spillKeyField, protowire.BytesType)
	b = protowire.AppendString(b, kv.Key)
	b = protowire.AppendTag(b, spillValueField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(kv.Value)))
	return b
}

// ReadSpill decodes every pair of a spill file in write order.
func ReadSpill(filePath string, fn func(core.Pair) error) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	for len(data) > 0 {
		record, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return fmt.Errorf("%w: %s: %v", ErrCorruptSpill, filePath, protowire.ParseError(n))
		}
		data = data[n:]

		kv, err := parsePair(record)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptSpill, filePath, err)
		}
		if err := fn(kv); err != nil {
			return err
		}
	}
	return nil
}

func parsePair(b []byte) (core.Pair, error) {
	var kv core.Pair
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return kv, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == spillKeyField && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return kv, protowire.ParseError(m)
			}
			kv.Key = v
			n = m
		case num == spillValueField && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return kv, protowire.ParseError(m)
			}
			kv.Value = int(protowire.DecodeZigZag(v))
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return kv, protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return kv, nil
}
