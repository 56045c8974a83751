package coroutine

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator produces unique identifiers for task handles and hosts.
// Implemented by UUIDv7Generator (production), FixedGenerator and
// SequenceGenerator (tests and scenarios).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so handles sort by
// start time in logs.
//
// UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined identifiers in order.
//
//	gen := NewFixedGenerator("task-1", "task-2")
//	gen.Generate() // "task-1"
//	gen.Generate() // "task-2"
//	gen.Generate() // panic: all ids exhausted
//
// Not safe for concurrent use.
type FixedGenerator struct {
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
// Panics once all ids are consumed, to catch tests that start more tasks
// than they expect.
func (g *FixedGenerator) Generate() string {
	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// SequenceGenerator returns prefix-0001, prefix-0002, ...
// Not safe for concurrent use.
type SequenceGenerator struct {
	prefix string
	n      int
}

// NewSequenceGenerator creates a counter-based generator.
// An empty prefix defaults to "id".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next identifier in the sequence.
func (g *SequenceGenerator) Generate() string {
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
