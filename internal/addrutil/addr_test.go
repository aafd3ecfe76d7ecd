package addrutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "encoder-01", want: "encoder-01"},
		{in: "  Encoder-01.lan ", want: "Encoder-01.lan"},
		{in: "10.0.0.5:8080", want: "10.0.0.5:8080"},
		{in: "::1", want: "[::1]"},
		{in: "[2001:db8::1]:8080", want: "[2001:db8::1]:8080"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "http://host", "host/path", "host:0", "host:99999", ":8080", "host name"} {
		_, err := Normalize(in)
		assert.Error(t, err, in)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[::1]", Key("::1"))
	assert.Equal(t, "enc-1:8080", Key(" enc-1:8080 "))
	// Invalid input is looked up as typed.
	assert.Equal(t, "host:0", Key("host:0"))
}

func TestHost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "encoder", Host("encoder:8080"))
	assert.Equal(t, "encoder", Host("encoder"))
	assert.Equal(t, "2001:db8::1", Host("[2001:db8::1]:80"))
	assert.Equal(t, "", Host(" "))
}

func TestURLs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http://encoder:8080/api/status", HTTPURL("encoder:8080", StatusPath))
	assert.Equal(t, "ws://encoder/api/network/ws", WSURL("encoder", StreamPath))
}
