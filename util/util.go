// Package util contains misc internal utilities.
package util

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// Clamp limits x to the closed interval [low, high]
func Clamp(x, low, high float64) float64 {
	if x < low {
		return low
	}
	if x > high {
		return high
	}
	return x
}

// SecsToDuration converts a number of seconds to a duration
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(secs * 1e9)
}

// MillisToDuration converts a number of milliseconds to a duration
func MillisToDuration(ms float64) time.Duration {
	return time.Duration(ms * 1e6)
}

// Round rounds a float to the nearest "unit" (0.1 for tenth, 0.01 for hundredth, and so on).
func Round(x, unit float64) float64 {
	if x < 0 {
		return -Round(-x, unit)
	}
	return float64(int64(x/unit+0.5)) * unit
}

// MergeErrors folds a slice of errors into one, skipping nils.
// It returns nil when every element is nil.
func MergeErrors(errs []error) error {
	var strs []string
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		strs = append(strs, err.Error())
	}
	switch len(strs) {
	case 0:
		return nil
	case 1:
		return first
	default:
		return errors.New(strings.Join(strs, "\n"))
	}
}
