package inbound

import (
	"net"

	"github.com/maskrapp/egress/internal/addrset"
	"github.com/sirupsen/logrus"
)

// Loopback is what connections from our own listening addresses are
// rewritten to, so they get the same treatment as local ones.
const Loopback = "127.0.0.1"

// Normalize returns Loopback if remote is one of the local addresses and
// remote otherwise.
func Normalize(remote string, local *addrset.Set) string {
	if local.Has(remote) {
		return Loopback
	}
	return remote
}

type Normalizer struct {
	local *addrset.Set
	log   logrus.FieldLogger
}

func NewNormalizer(local *addrset.Set, log logrus.FieldLogger) *Normalizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Normalizer{local: local, log: log}
}

// NormalizeIP rewrites a single textual address.
func (n *Normalizer) NormalizeIP(remote string) string {
	normalized := Normalize(remote, n.local)
	if normalized != remote {
		n.log.WithField("remote", remote).Debugf("localhost connection from %v", remote)
	}
	return normalized
}

// NormalizeAddr applies NormalizeIP to the host part of a TCP address and
// keeps the port. Other address types are returned as is.
func (n *Normalizer) NormalizeAddr(addr net.Addr) net.Addr {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr
	}
	ip := tcp.IP.String()
	normalized := n.NormalizeIP(ip)
	if normalized == ip {
		return addr
	}
	return &net.TCPAddr{IP: net.ParseIP(normalized), Port: tcp.Port}
}

// IsLocal reports whether addr is a loopback address once normalized.
func (n *Normalizer) IsLocal(addr net.Addr) bool {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return false
	}
	return tcp.IP.IsLoopback() || n.local.Has(tcp.IP.String())
}
