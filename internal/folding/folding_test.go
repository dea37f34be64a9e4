package folding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(n, classes int) []int {
	y := make([]int, n)
	for i := range y {
		y[i] = i % classes
	}
	return y
}

func checkPartition(t *testing.T, f Fold, n int) {
	t.Helper()
	seenInTest := make(map[int]int)
	for i := range f.K() {
		train, test, err := f.Fold(i)
		require.NoError(t, err)
		assert.Equal(t, n, len(train)+len(test))

		inTest := make(map[int]bool, len(test))
		for _, idx := range test {
			inTest[idx] = true
			seenInTest[idx]++
		}
		for _, idx := range train {
			assert.False(t, inTest[idx], "index %d in both train and test of fold %d", idx, i)
		}
	}
	assert.Len(t, seenInTest, n)
	for idx, count := range seenInTest {
		assert.Equal(t, 1, count, "index %d tested %d times", idx, count)
	}
}

func TestKFold_Partition(t *testing.T) {
	f, err := NewKFold(5, 23, 271)
	require.NoError(t, err)
	checkPartition(t, f, 23)

	_, test, err := f.Fold(0)
	require.NoError(t, err)
	assert.Len(t, test, 5)
	_, test, err = f.Fold(4)
	require.NoError(t, err)
	assert.Len(t, test, 4)
}

func TestKFold_Deterministic(t *testing.T) {
	a, err := NewKFold(3, 30, 42)
	require.NoError(t, err)
	b, err := NewKFold(3, 30, 42)
	require.NoError(t, err)
	c, err := NewKFold(3, 30, 43)
	require.NoError(t, err)

	trainA, testA, _ := a.Fold(1)
	trainB, testB, _ := b.Fold(1)
	_, testC, _ := c.Fold(1)
	assert.Equal(t, trainA, trainB)
	assert.Equal(t, testA, testB)
	assert.NotEqual(t, testA, testC)
}

func TestStratifiedKFold_Proportions(t *testing.T) {
	y := labels(30, 3)
	f, err := NewStratifiedKFold(5, y, 271)
	require.NoError(t, err)
	checkPartition(t, f, 30)

	for i := range 5 {
		_, test, err := f.Fold(i)
		require.NoError(t, err)
		counts := make(map[int]int)
		for _, idx := range test {
			counts[y[idx]]++
		}
		assert.Equal(t, map[int]int{0: 2, 1: 2, 2: 2}, counts)
	}
}

func TestNew(t *testing.T) {
	f, err := New(true, 3, labels(9, 3), 1)
	require.NoError(t, err)
	assert.IsType(t, &StratifiedKFold{}, f)

	f, err = New(false, 3, labels(9, 3), 1)
	require.NoError(t, err)
	assert.IsType(t, &KFold{}, f)

	random, err := New(false, 3, labels(9, 3), -1)
	require.NoError(t, err)
	checkPartition(t, random, 9)
}

func TestFold_Errors(t *testing.T) {
	_, err := NewKFold(1, 10, 0)
	assert.True(t, errors.Is(err, ErrFold))
	_, err = NewKFold(11, 10, 0)
	assert.True(t, errors.Is(err, ErrFold))
	_, err = NewStratifiedKFold(3, []int{0, 1}, 0)
	assert.True(t, errors.Is(err, ErrFold))

	f, err := NewKFold(2, 4, 0)
	require.NoError(t, err)
	_, _, err = f.Fold(2)
	assert.True(t, errors.Is(err, ErrFold))
}
