package math_test

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tmmath "github.com/tendermint/ledgersync/libs/math"
)

func TestSafeAdd(t *testing.T) {
	f := func(a, b int64) bool {
		c, overflow := tmmath.SafeAdd(a, b)
		return overflow || (!overflow && c == a+b)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestSafeAddClip(t *testing.T) {
	assert.EqualValues(t, math.MaxInt64, tmmath.SafeAddClip(math.MaxInt64, 10))
	assert.EqualValues(t, math.MaxInt64, tmmath.SafeAddClip(math.MaxInt64, math.MaxInt64))
	assert.EqualValues(t, math.MinInt64, tmmath.SafeAddClip(math.MinInt64, -10))
}

func TestSafeMul(t *testing.T) {
	testCases := []struct {
		a        int64
		b        int64
		c        int64
		overflow bool
	}{
		0: {0, 0, 0, false},
		1: {1, 0, 0, false},
		2: {2, 3, 6, false},
		3: {2, -3, -6, false},
		4: {-2, -3, 6, false},
		5: {-2, 3, -6, false},
		6: {math.MaxInt64, 1, math.MaxInt64, false},
		7: {math.MaxInt64 / 2, 2, math.MaxInt64 - 1, false},
		8: {math.MaxInt64 / 2, 3, -1, true},
		9: {math.MinInt64, 2, -1, true},
	}

	for i, tc := range testCases {
		c, overflow := tmmath.SafeMul(tc.a, tc.b)
		assert.Equal(t, tc.c, c, "#%d", i)
		assert.Equal(t, tc.overflow, overflow, "#%d", i)
	}
}

func TestSafeAddUint64(t *testing.T) {
	v, err := tmmath.SafeAddUint64(1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)

	_, err = tmmath.SafeAddUint64(math.MaxUint64, 1)
	require.ErrorIs(t, err, tmmath.ErrOverflowUint64)
}

func TestParseFraction(t *testing.T) {
	testCases := []struct {
		f   string
		exp tmmath.Fraction
		err bool
	}{
		{"2/3", tmmath.Fraction{Numerator: 2, Denominator: 3}, false},
		{"15/5", tmmath.Fraction{Numerator: 15, Denominator: 5}, false},
		{"1/1", tmmath.Fraction{Numerator: 1, Denominator: 1}, false},
		{"0/5", tmmath.Fraction{Numerator: 0, Denominator: 5}, false},
		{"1/0", tmmath.Fraction{}, true},
		{"-1/3", tmmath.Fraction{}, true},
		{"2/3/4", tmmath.Fraction{}, true},
		{"1.5/2", tmmath.Fraction{}, true},
		{"", tmmath.Fraction{}, true},
		{"9223372036854775808/2", tmmath.Fraction{}, true},
	}

	for idx, tc := range testCases {
		output, err := tmmath.ParseFraction(tc.f)
		if tc.err {
			assert.Error(t, err, idx)
		} else {
			assert.NoError(t, err, idx)
		}
		assert.Equal(t, tc.exp, output, idx)
	}
}

func TestFractionMulFloor(t *testing.T) {
	twoThirds := tmmath.Fraction{Numerator: 2, Denominator: 3}

	v, err := twoThirds.MulFloor(10)
	require.NoError(t, err)
	assert.EqualValues(t, 6, v)

	_, err = twoThirds.MulFloor(math.MaxInt64)
	require.ErrorIs(t, err, tmmath.ErrOverflowInt64)
}
