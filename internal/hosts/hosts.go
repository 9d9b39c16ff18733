// Package hosts reads the destination mapping which tells, per sender
// domain, which HELO name and source address outbound mail should use.
//
// Entries are parsed eagerly but a malformed entry is not an error of the
// whole mapping: it is kept with its parse error so that only a lookup that
// actually hits it fails.
package hosts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// DefaultKey is the entry used when the sender domain has no entry of its own.
const DefaultKey = "default"

var ErrMalformed = errors.New("must be an object with 'helo' and 'ip' strings")

// Entry is the result of parsing one mapping value. Err is set if the value
// did not have the expected shape, in which case Helo and IP are empty.
type Entry struct {
	Helo string
	IP   string
	// Raw is the value as found in the source, for error messages.
	Raw string
	Err error
}

type Hosts map[string]Entry

// Lookup finds the entry for key. Keys are case-insensitive.
func (h Hosts) Lookup(key string) (Entry, bool) {
	e, ok := h[normalizeKey(key)]
	return e, ok
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

type Source interface {
	// Load returns the current mapping. Implementations must not cache:
	// the mapping is edited while the relay runs.
	Load(ctx context.Context) (Hosts, error)
	String() string
}

// NewEntry builds an entry from plain values, the way a mapping source
// would have produced it.
func NewEntry(helo, ip string) Entry {
	raw := renderJSON(map[string]string{"helo": helo, "ip": ip}, "")
	return newEntry(&helo, &ip, raw)
}

func newEntry(helo, ip *string, raw string) Entry {
	e := Entry{Raw: raw}
	if helo == nil || ip == nil || *helo == "" || *ip == "" {
		e.Err = ErrMalformed
		return e
	}
	e.Helo, e.IP = *helo, *ip
	return e
}

func renderJSON(v interface{}, fallback string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(b)
}
