package partition

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFor_Deterministic(t *testing.T) {
	id := uuid.MustParse("deadbeef-0000-4000-8000-00000000002a")

	first := KeyFor(id)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, KeyFor(id))
	}
}

func TestKeyFor_UsesLowByte(t *testing.T) {
	tests := []struct {
		id   string
		want Key
	}{
		{"00000000-0000-0000-0000-000000000000", 0},
		{"00000000-0000-0000-0000-000000000001", 1},
		{"00000000-0000-0000-0000-00000000000f", 15},
		{"00000000-0000-0000-0000-000000000010", 0},
		{"ffffffff-ffff-ffff-ffff-ffffffffffff", 15},
		// Only the last byte matters.
		{"12345678-9abc-def0-1234-56789abcde07", 7},
	}

	for _, tt := range tests {
		id, err := uuid.Parse(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, KeyFor(id), "uuid %s", tt.id)
	}
}

func TestKeyFor_AlwaysInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		k := KeyFor(uuid.New())
		assert.GreaterOrEqual(t, k, Key(0))
		assert.Less(t, k, Key(Count))
	}
}
