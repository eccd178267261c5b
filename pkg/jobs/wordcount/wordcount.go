// Package wordcount provides the map, reduce and partition plugins of the
// word counting job.
package wordcount

import (
	"iter"
	"slices"
	"strings"
	"unicode"

	"github.com/nemanja-m/wordcount/pkg/core"
	"github.com/nemanja-m/wordcount/pkg/jobs"
)

const Name = "wordcount"

// Unit is the value emitted for every word occurrence. Reduce counts values
// instead of summing them, which is only a word count while Unit is 1.
const Unit = 1

func init() {
	if err := jobs.Register(jobs.Job{
		Name:        Name,
		Description: "counts occurrences of each word in the input text",
		Map:         Map,
		Reduce:      Reduce,
		Partitioner: core.NewPartitioner,
	}); err != nil {
		panic(err)
	}
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == ',' || r == '.' || r == ':'
}

// Map yields (word, 1) for every word of value in order. Commas, periods and
// colons separate words like whitespace does.
func Map(_, value string) iter.Seq[core.Pair] {
	return func(yield func(core.Pair) bool) {
		for word := range strings.FieldsFuncSeq(value, isSeparator) {
			if !yield(core.Pair{Key: strings.ToLower(word), Value: Unit}) {
				return
			}
		}
	}
}

// MapAll is the eager form of Map.
func MapAll(key, value string) []core.Pair {
	return slices.Collect(Map(key, value))
}

func Reduce(_ string, values []int) int {
	return len(values)
}

var _ core.PartitionFunc = Partition

// Partition routes a word with the rolling hash and DefaultBase.
func Partition(key string, numPartitions int) int {
	return core.RollingHash{Base: core.DefaultBase}.Partition(key, numPartitions)
}
