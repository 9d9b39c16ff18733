package envelope

import (
	"net"
	"strings"
)

// Notes carries per-message decisions from the pipeline to the transport.
type Notes struct {
	OutboundHelo string
	OutboundIP   string
}

// Envelope is one received message. Helo is the name the client gave in
// HELO or EHLO, "" if it gave none.
type Envelope struct {
	Remote net.Addr
	Helo   string
	From   string
	To     []string
	Data   []byte
	Notes  Notes
}

// SenderDomain returns the lower-cased domain part of the envelope sender,
// or "" for the null sender.
func (e *Envelope) SenderDomain() string {
	return Domain(e.From)
}

// Domain returns the lower-cased part of addr after the last '@'.
func Domain(addr string) string {
	addr = strings.Trim(strings.TrimSpace(addr), "<>")
	i := strings.LastIndexByte(addr, '@')
	if i < 0 {
		return ""
	}
	return strings.ToLower(addr[i+1:])
}

// ReceivedHelo returns the HELO name recorded in a Received header of the
// form "from <helo> (<host> [<ip>]) by ...".
func ReceivedHelo(received string) string {
	fields := strings.Fields(received)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "from") || strings.HasPrefix(fields[1], "(") {
		return ""
	}
	return fields[1]
}
