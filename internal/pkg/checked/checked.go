// Package checked provides counter arithmetic that reports overflow and
// underflow instead of wrapping.
package checked

import "math"

type unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Add returns a+b and false if the sum wrapped.
func Add[T unsigned](a, b T) (T, bool) {
	sum := a + b
	return sum, sum >= a
}

// Sub returns a-b and false if b > a.
func Sub[T unsigned](a, b T) (T, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}

// AddInt64 returns a+b and false on signed overflow.
func AddInt64(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}
