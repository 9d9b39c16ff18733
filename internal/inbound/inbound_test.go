package inbound_test

import (
	"net"
	"testing"

	"github.com/maskrapp/egress/internal/addrset"
	"github.com/maskrapp/egress/internal/inbound"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	local := addrset.Parse("203.0.113.4")

	assert.Equal(t, inbound.Loopback, inbound.Normalize("203.0.113.4", local))
	assert.Equal(t, "198.51.100.1", inbound.Normalize("198.51.100.1", local))
	assert.Equal(t, "198.51.100.1", inbound.Normalize("198.51.100.1", addrset.Parse("")))
}

func TestNormalizerLogsRewrite(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	n := inbound.NewNormalizer(addrset.Parse("203.0.113.4, 203.0.113.5"), logger)

	assert.Equal(t, "198.51.100.1", n.NormalizeIP("198.51.100.1"))
	assert.Empty(t, hook.AllEntries())

	assert.Equal(t, inbound.Loopback, n.NormalizeIP("203.0.113.5"))
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)
	assert.Equal(t, "203.0.113.5", hook.LastEntry().Data["remote"])
}

func TestNormalizeAddrKeepsPort(t *testing.T) {
	logger, _ := test.NewNullLogger()
	n := inbound.NewNormalizer(addrset.Parse("203.0.113.4"), logger)

	got := n.NormalizeAddr(&net.TCPAddr{IP: net.ParseIP("203.0.113.4"), Port: 41000})
	tcp, ok := got.(*net.TCPAddr)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1", tcp.IP.String())
	assert.Equal(t, 41000, tcp.Port)

	other := &net.TCPAddr{IP: net.ParseIP("198.51.100.1"), Port: 25}
	assert.Same(t, other, n.NormalizeAddr(other))

	unix := &net.UnixAddr{Name: "/run/smtp.sock", Net: "unix"}
	assert.Equal(t, net.Addr(unix), n.NormalizeAddr(unix))
}

func TestIsLocal(t *testing.T) {
	logger, _ := test.NewNullLogger()
	n := inbound.NewNormalizer(addrset.Parse("203.0.113.4"), logger)

	assert.True(t, n.IsLocal(&net.TCPAddr{IP: net.ParseIP("203.0.113.4")}))
	assert.True(t, n.IsLocal(&net.TCPAddr{IP: net.ParseIP("127.0.0.1")}))
	assert.False(t, n.IsLocal(&net.TCPAddr{IP: net.ParseIP("198.51.100.1")}))
	assert.False(t, n.IsLocal(&net.UnixAddr{Name: "x", Net: "unix"}))
}
