package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arbstack/bscarb/types"
)

const testNet = types.Network("bsc")

func TestNextRoundRobin(t *testing.T) {
	r := NewRotator(map[types.Network][]string{
		testNet: {"https://a.example", "https://b.example", "https://c.example"},
	}, zaptest.NewLogger(t))

	var got []string
	for i := 0; i < 7; i++ {
		ep, err := r.Next(testNet)
		require.NoError(t, err)
		got = append(got, ep.URL)
	}

	assert.Equal(t, []string{
		"https://a.example", "https://b.example", "https://c.example",
		"https://a.example", "https://b.example", "https://c.example",
		"https://a.example",
	}, got, "rotation must wrap around in order")
}

func TestNextSingleEndpoint(t *testing.T) {
	r := NewRotator(map[types.Network][]string{
		testNet: {"https://only.example"},
	}, zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		ep, err := r.Next(testNet)
		require.NoError(t, err)
		assert.Equal(t, "https://only.example", ep.URL)
		assert.Equal(t, testNet, ep.Network)
	}
}

func TestNextNoEndpoints(t *testing.T) {
	r := NewRotator(map[types.Network][]string{}, zaptest.NewLogger(t))

	_, err := r.Next(testNet)
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestEnabled(t *testing.T) {
	r := NewRotator(map[types.Network][]string{
		testNet: {"https://a.example"},
	}, zaptest.NewLogger(t))

	assert.True(t, r.Enabled(testNet))
	assert.False(t, r.Enabled(types.Network("polygon")))
}

func TestNetworks(t *testing.T) {
	r := NewRotator(map[types.Network][]string{
		testNet:                  {"https://a.example"},
		types.Network("polygon"): {},
	}, zaptest.NewLogger(t))

	nets := r.Networks()
	assert.Equal(t, []types.Network{testNet}, nets,
		"networks without endpoints are not listed")
}
