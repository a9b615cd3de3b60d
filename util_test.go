package tsetlin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_divideBy8RoundUp(t *testing.T) {
	assert.Equal(t, 0, divideBy8RoundUp(0))
	assert.Equal(t, 1, divideBy8RoundUp(1))
	assert.Equal(t, 1, divideBy8RoundUp(7))
	assert.Equal(t, 1, divideBy8RoundUp(8))
	assert.Equal(t, 2, divideBy8RoundUp(9))
	assert.Equal(t, 8, divideBy8RoundUp(64))
	assert.Equal(t, 9, divideBy8RoundUp(65))
}

func Test_BitmapSetGet(t *testing.T) {
	stride := divideBy8RoundUp(20)
	bitmap := make([]byte, stride*3)

	assert.False(t, bitmapGet(bitmap, stride, 1, 5))
	bitmapSet(bitmap, stride, 1, 5)
	assert.True(t, bitmapGet(bitmap, stride, 1, 5))

	// other classes and indices are unaffected.
	assert.False(t, bitmapGet(bitmap, stride, 0, 5))
	assert.False(t, bitmapGet(bitmap, stride, 2, 5))
	assert.False(t, bitmapGet(bitmap, stride, 1, 6))

	bitmapSet(bitmap, stride, 1, 19)
	assert.True(t, bitmapGet(bitmap, stride, 1, 19))
}
