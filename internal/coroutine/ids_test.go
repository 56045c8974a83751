package coroutine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}

	a := gen.Generate()
	b := gen.Generate()

	assert.NotEqual(t, a, b)
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	gen := NewFixedGenerator("h-1", "h-2")

	assert.Equal(t, "h-1", gen.Generate())
	assert.Equal(t, "h-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator("task")
	assert.Equal(t, "task-0001", gen.Generate())
	assert.Equal(t, "task-0002", gen.Generate())

	assert.Equal(t, "id-0001", NewSequenceGenerator("").Generate())
}
