package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMetricName(t *testing.T) {
	tests := map[string]string{
		" session/login ": "session_login",
		"poll..done":      "poll.done",
		"a:b|c":           "a_b_c",
		".":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeMetricName(in), in)
	}
}

func TestFormatTags_LocalWinsAndSorted(t *testing.T) {
	got := formatTags(
		map[string]string{"env": "prod", " service ": " console "},
		map[string]string{"result": " success ", "": "ignored", "env": "stage"},
	)
	assert.Equal(t, "|#env:stage,result:success,service:console", got)
	assert.Empty(t, formatTags(nil, nil))
}

func TestNilAndDisabledClientsDrop(t *testing.T) {
	var nilClient *Client
	assert.NotPanics(t, func() {
		nilClient.Count("x", 1, nil)
		nilClient.Timing("x", time.Second, nil)
	})
	assert.False(t, nilClient.Enabled())
	assert.NoError(t, nilClient.Close())

	c, err := NewClient(Config{Enabled: true, Address: "  "})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	c.Gauge("x", 1, nil)
}

func TestClientWritesDatagrams(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	c, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     ".esg_console.",
		GlobalTags: map[string]string{"env": "test"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.True(t, c.Enabled())

	c.Count("session.login", 1, map[string]string{"result": "success"})
	c.Timing("poll.duration", 1500*time.Microsecond, nil)

	read := func() string {
		buf := make([]byte, 512)
		require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, rerr := pc.ReadFrom(buf)
		require.NoError(t, rerr)
		return string(buf[:n])
	}
	assert.Equal(t, "esg_console.session.login:1|c|#env:test,result:success", read())
	assert.Equal(t, "esg_console.poll.duration:1.5|ms|#env:test", read())

	require.NoError(t, c.Close())
	assert.False(t, c.Enabled())
}
