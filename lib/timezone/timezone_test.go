package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		t        time.Time
		expected string
	}{
		{
			t:        time.Date(2024, time.November, 11, 0, 0, 0, 0, time.UTC),
			expected: "2024-11-11 08:00:00 CST",
		},
		{
			t:        time.Date(2024, time.November, 10, 20, 30, 0, 0, time.UTC),
			expected: "2024-11-11 04:30:00 CST",
		},
		{
			t:        time.Time{},
			expected: "never",
		},
	}

	for _, test := range cases {
		require.Equal(t, test.expected, Format(test.t))
	}
}

func TestNow(t *testing.T) {
	now := Now()
	require.Equal(t, Location, now.Location())
	_, offset := now.Zone()
	require.Equal(t, 8*60*60, offset)
}
