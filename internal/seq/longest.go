// internal/seq/longest.go
//
// Small sequence helpers used across the CLI and analysers.

package seq

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrEmptyInput is returned when an operation requires at least one element.
var ErrEmptyInput = errors.New("seq: input sequence is empty")

// ErrNotMeasurable is returned when an element has no meaningful length.
var ErrNotMeasurable = errors.New("seq: element length is not measurable")

// ErrMixedTypes is returned when elements of different kinds are compared.
var ErrMixedTypes = errors.New("seq: elements have mixed types")

// Longest returns the element of items with the greatest length. Ties are
// broken in favour of the earliest element.
func Longest[E ~string | ~[]byte](items []E) (E, error) {
	var zero E
	if len(items) == 0 {
		return zero, ErrEmptyInput
	}
	best := items[0]
	for _, item := range items[1:] {
		if len(item) > len(best) {
			best = item
		}
	}
	return best, nil
}

// LongestAny is Longest over a heterogeneously typed slice. Every element
// must be length-measurable (string, slice, array, or map) and all elements
// must share one dynamic type; anything else fails with ErrNotMeasurable or
// ErrMixedTypes.
func LongestAny(items []any) (any, error) {
	if len(items) == 0 {
		return nil, ErrEmptyInput
	}
	bestLen, err := measurableLen(items[0])
	if err != nil {
		return nil, err
	}
	first := reflect.TypeOf(items[0])
	best := items[0]
	for i, item := range items[1:] {
		if reflect.TypeOf(item) != first {
			return nil, fmt.Errorf("%w: element %d is %T, element 0 is %T", ErrMixedTypes, i+1, item, items[0])
		}
		length, err := measurableLen(item)
		if err != nil {
			return nil, err
		}
		if length > bestLen {
			best = item
			bestLen = length
		}
	}
	return best, nil
}

func measurableLen(item any) (int, error) {
	if item == nil {
		return 0, fmt.Errorf("%w: nil element", ErrNotMeasurable)
	}
	v := reflect.ValueOf(item)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return v.Len(), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotMeasurable, item)
	}
}
