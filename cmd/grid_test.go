package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntList(t *testing.T) {
	sizes, err := parseIntList("1,2,4,8,16")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4, 8, 16}, sizes)

	sizes, err = parseIntList(" 10 , 20 ")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20}, sizes)
}

func TestParseIntListErrors(t *testing.T) {
	for _, bad := range []string{"", "abc", "1,x", "0", "-5", ","} {
		_, err := parseIntList(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseWaitList(t *testing.T) {
	waits, err := parseWaitList("0.1,1.0")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, time.Second}, waits)

	waits, err = parseWaitList("0")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0}, waits)
}

func TestParseWaitListErrors(t *testing.T) {
	for _, bad := range []string{"", "fast", "-1", ","} {
		_, err := parseWaitList(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
