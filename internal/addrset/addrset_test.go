package addrset_test

import (
	"testing"

	"github.com/maskrapp/egress/internal/addrset"
	"github.com/stretchr/testify/assert"
)

func TestParseIgnoresWhitespace(t *testing.T) {
	spaced := addrset.Parse("a, b ,c")
	plain := addrset.Parse("a,b,c")

	assert.Equal(t, plain.List(), spaced.List())
	for _, addr := range []string{"a", "b", "c"} {
		assert.True(t, spaced.Has(addr), addr)
	}
	assert.False(t, spaced.Has(" b "))
}

func TestParseEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", ",", " , ,"} {
		s := addrset.Parse(raw)
		assert.Equal(t, 0, s.Len(), "%q", raw)
		assert.Equal(t, "", s.First())
	}
}

func TestParseKeepsDeclarationOrder(t *testing.T) {
	s := addrset.Parse(" 10.0.0.9 ,10.0.0.5,\n10.0.0.9, 10.0.0.7\n")

	assert.Equal(t, []string{"10.0.0.9", "10.0.0.5", "10.0.0.7"}, s.List())
	assert.Equal(t, "10.0.0.9", s.First())
	assert.Equal(t, 3, s.Len())
}

func TestAcceptsAny(t *testing.T) {
	assert.True(t, addrset.Parse("10.0.0.1, *").AcceptsAny())
	assert.False(t, addrset.Parse("10.0.0.1").AcceptsAny())

	var nilSet *addrset.Set
	assert.False(t, nilSet.AcceptsAny())
	assert.Equal(t, 0, nilSet.Len())
}

func TestListIsACopy(t *testing.T) {
	s := addrset.Parse("a,b")
	l := s.List()
	l[0] = "z"
	assert.Equal(t, "a", s.First())
}
