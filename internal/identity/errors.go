package identity

import (
	"fmt"

	"github.com/maskrapp/egress/internal/hosts"
)

// MalformedError is returned when the mapping entry that matched does not
// have the helo/ip shape.
type MalformedError struct {
	Key string
	Raw string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%v %v: got %v", e.Key, hosts.ErrMalformed, e.Raw)
}

func (e *MalformedError) Unwrap() error {
	return hosts.ErrMalformed
}

// AddressError is returned when the mapping entry that matched names an
// address this instance may not send from.
type AddressError struct {
	Key string
	IP  string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%v: %v is not a listed address for this server instance", e.Key, e.IP)
}
