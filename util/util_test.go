package util_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nasa-jpl/picamlab/util"
)

func TestIntSliceToCSV(t *testing.T) {
	inp := []int{1, 2, 3}
	expected := "1,2,3"
	out := util.IntSliceToCSV(inp)
	if expected != out {
		t.Errorf("expected %s got %s", expected, out)
	}
}

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != high {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != low {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}

func TestMillisToDuration(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, util.MillisToDuration(500))
}

func TestMergeErrors(t *testing.T) {
	assert.NoError(t, util.MergeErrors(nil))
	assert.NoError(t, util.MergeErrors([]error{nil, nil}))
	sentinel := errors.New("one")
	assert.Same(t, sentinel, util.MergeErrors([]error{nil, sentinel}))
	assert.EqualError(t, util.MergeErrors([]error{errors.New("a"), errors.New("b")}), "a\nb")
}
