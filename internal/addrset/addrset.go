package addrset

import (
	"regexp"
	"strings"
)

// Any is the entry that makes a set accept every address.
const Any = "*"

var separator = regexp.MustCompile(`\s*,\s*`)

// Set is an immutable set of addresses which remembers the order the
// addresses were declared in.
type Set struct {
	members map[string]struct{}
	order   []string
}

// Parse builds a Set from a comma-separated list. Whitespace around
// entries is ignored and empty entries are dropped.
func Parse(raw string) *Set {
	s := &Set{members: make(map[string]struct{})}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s
	}
	for _, addr := range separator.Split(raw, -1) {
		if addr == "" {
			continue
		}
		if _, ok := s.members[addr]; ok {
			continue
		}
		s.members[addr] = struct{}{}
		s.order = append(s.order, addr)
	}
	return s
}

func (s *Set) Has(addr string) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[addr]
	return ok
}

// AcceptsAny reports whether the set contains the Any marker.
func (s *Set) AcceptsAny() bool {
	return s.Has(Any)
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// First returns the first declared address, or "" for an empty set.
func (s *Set) First() string {
	if s.Len() == 0 {
		return ""
	}
	return s.order[0]
}

// List returns a copy of the addresses in declaration order.
func (s *Set) List() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

func (s *Set) String() string {
	return strings.Join(s.List(), ",")
}
