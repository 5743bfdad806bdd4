package checked

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdd(t *testing.T) {
	sum, ok := Add[uint16](999, 1)
	assert.True(t, ok)
	assert.Equal(t, uint16(1000), sum)

	_, ok = Add[uint16](math.MaxUint16, 1)
	assert.False(t, ok, "uint16 must not wrap")

	_, ok = Add[uint64](math.MaxUint64, 1)
	assert.False(t, ok, "uint64 must not wrap")
}

func TestSub(t *testing.T) {
	diff, ok := Sub[uint16](1, 1)
	assert.True(t, ok)
	assert.Equal(t, uint16(0), diff)

	_, ok = Sub[uint16](0, 1)
	assert.False(t, ok, "uint16 must not underflow")

	diff64, ok := Sub[uint64](5_000_000, 2_000_000)
	assert.True(t, ok)
	assert.Equal(t, uint64(3_000_000), diff64)
}

func TestAddInt64(t *testing.T) {
	sum, ok := AddInt64(1_700_000_000, 604_800)
	assert.True(t, ok)
	assert.Equal(t, int64(1_700_604_800), sum)

	_, ok = AddInt64(math.MaxInt64, 1)
	assert.False(t, ok)

	_, ok = AddInt64(math.MinInt64, -1)
	assert.False(t, ok)
}
