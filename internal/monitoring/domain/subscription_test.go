package monitoring

import (
	"errors"
	"testing"
)

func TestValidateThreshold(t *testing.T) {
	cases := []struct {
		minutes int
		valid   bool
	}{
		{0, false},
		{1, true},
		{5, true},
		{60, true},
		{61, false},
		{-3, false},
	}
	for _, tc := range cases {
		err := ValidateThreshold(tc.minutes)
		if tc.valid && err != nil {
			t.Fatalf("minutes=%d: unexpected error %v", tc.minutes, err)
		}
		if !tc.valid && !errors.Is(err, ErrThresholdOutOfRange) {
			t.Fatalf("minutes=%d: expected ErrThresholdOutOfRange, got %v", tc.minutes, err)
		}
	}
}
