// Package identity picks the HELO name and source address used for each
// outgoing message.
//
// The order of precedence is:
//
//  1. With a single known address, or an address forced by the
//     environment, the defaults are used and the mapping is not consulted.
//  2. The mapping entry for the sender domain.
//  3. The mapping entry named "default".
//  4. The host name and the default address.
//
// A mapping that cannot be loaded falls through to 4. A mapping entry that
// is found but is malformed or names an unknown address is an error: the
// message fails instead of silently going out under another identity.
package identity

import (
	"context"
	"time"

	"github.com/maskrapp/egress/internal/addrset"
	"github.com/maskrapp/egress/internal/audit"
	"github.com/maskrapp/egress/internal/envelope"
	"github.com/maskrapp/egress/internal/hosts"
	"github.com/sirupsen/logrus"
)

// Wildcard as an address lets the operating system pick the source address.
const Wildcard = "*"

type Record struct {
	Helo string
	IP   string
}

type Config struct {
	Hostname string
	// DefaultIP is the address used when nothing more specific applies. It
	// is always acceptable, even if it is not in Addrs.
	DefaultIP string
	// Addrs are the addresses outbound connections may be bound to.
	Addrs *addrset.Set
	// Forced is set when the outbound address is pinned by the environment.
	Forced bool
}

// DefaultIP resolves the default address: the forced address, then the
// configured default, then the first known address, then Wildcard.
func DefaultIP(forced, fallback string, addrs *addrset.Set) string {
	switch {
	case forced != "":
		return forced
	case fallback != "":
		return fallback
	case addrs.Len() > 0:
		return addrs.First()
	default:
		return Wildcard
	}
}

type Selector struct {
	cfg    Config
	source hosts.Source
	rec    audit.Recorder
	log    logrus.FieldLogger
}

func New(cfg Config, source hosts.Source, rec audit.Recorder, log logrus.FieldLogger) *Selector {
	if rec == nil {
		rec = audit.Discard
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Selector{cfg: cfg, source: source, rec: rec, log: log}
}

// Select returns the identity for mail from the domain key. The only errors
// are *MalformedError and *AddressError for a mapping entry that matched.
func (s *Selector) Select(ctx context.Context, key string) (Record, error) {
	if s.cfg.Forced || s.cfg.Addrs.Len() == 1 || s.source == nil {
		return s.useDefault(ctx, key)
	}

	s.log.Debugf("loading %v", s.source)
	mapping, err := s.source.Load(ctx)
	if err != nil {
		s.log.WithError(err).Errorf("Error using %v", s.source)
		return s.useDefault(ctx, key)
	}

	if entry, ok := mapping.Lookup(key); ok {
		return s.accept(ctx, key, key, entry, false)
	}
	if entry, ok := mapping.Lookup(hosts.DefaultKey); ok {
		return s.accept(ctx, key, hosts.DefaultKey, entry, false)
	}
	s.log.Errorf("Couldn't find an entry for %v or '%v' in %v", key, hosts.DefaultKey, s.source)
	return s.useDefault(ctx, key)
}

// Apply selects the identity for the envelope's sender domain and stores it
// in the envelope notes.
func (s *Selector) Apply(ctx context.Context, env *envelope.Envelope) error {
	r, err := s.Select(ctx, env.SenderDomain())
	if err != nil {
		return err
	}
	env.Notes.OutboundHelo = r.Helo
	env.Notes.OutboundIP = r.IP
	return nil
}

func (s *Selector) useDefault(ctx context.Context, key string) (Record, error) {
	entry := hosts.NewEntry(s.cfg.Hostname, s.cfg.DefaultIP)
	return s.accept(ctx, key, hosts.DefaultKey, entry, true)
}

func (s *Selector) accept(ctx context.Context, key, source string, entry hosts.Entry, fallback bool) (Record, error) {
	r, err := s.validate(source, entry)
	if err != nil {
		return Record{}, err
	}

	s.log.WithFields(logrus.Fields{
		"key":  key,
		"helo": r.Helo,
		"ip":   r.IP,
	}).Infof("Setting outbound HELO = %v, IP = %v (%v)", r.Helo, r.IP, source)
	s.rec.Record(ctx, audit.Decision{
		Time:     time.Now(),
		Key:      key,
		Source:   source,
		Helo:     r.Helo,
		IP:       r.IP,
		Fallback: fallback,
	})
	return r, nil
}

func (s *Selector) validate(key string, entry hosts.Entry) (Record, error) {
	if entry.Err != nil {
		return Record{}, &MalformedError{Key: key, Raw: entry.Raw}
	}
	r := Record{Helo: entry.Helo, IP: entry.IP}
	if r.IP == Wildcard {
		return r, nil
	}
	if !s.cfg.Addrs.Has(r.IP) && !s.cfg.Addrs.AcceptsAny() && r.IP != s.cfg.DefaultIP {
		return Record{}, &AddressError{Key: key, IP: r.IP}
	}
	return r, nil
}
