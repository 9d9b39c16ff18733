// Package global carries what every SMTP session needs: the configuration
// and the instances built from it at startup. Both are read-only once the
// listener is running, so sessions share them without locking.
package global

import (
	"context"
	"time"

	"github.com/maskrapp/egress/internal/addrset"
	"github.com/maskrapp/egress/internal/config"
	"github.com/maskrapp/egress/internal/identity"
	"github.com/maskrapp/egress/internal/inbound"
	"github.com/maskrapp/egress/internal/mailer"
	"github.com/maskrapp/egress/internal/validation"
)

// Instances are built once at startup and shared read-only by all sessions.
type Instances struct {
	Selector     *identity.Selector
	Normalizer   *inbound.Normalizer
	Mailer       *mailer.Mailer
	Validator    *validation.MailValidator
	LocalDomains *addrset.Set
}

// Context is a context.Context that also hands out the process-wide
// configuration and instances. Derived contexts share both.
type Context interface {
	context.Context
	Instances() *Instances
	Config() *config.Config
}

type globalContext struct {
	context.Context
	instances *Instances
	config    *config.Config
}

func NewContext(ctx context.Context, instances *Instances, config *config.Config) Context {
	return &globalContext{
		Context:   ctx,
		instances: instances,
		config:    config,
	}
}

func (r *globalContext) Instances() *Instances {
	return r.instances
}

func (r *globalContext) Config() *config.Config {
	return r.config
}

// WithCancel is context.WithCancel for a Context.
func WithCancel(parent Context) (Context, context.CancelFunc) {
	c, cancel := context.WithCancel(parent)
	return derive(parent, c), cancel
}

// WithTimeout bounds a single message. The session's instances stay the same.
func WithTimeout(parent Context, timeout time.Duration) (Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(parent, timeout)
	return derive(parent, c), cancel
}

func derive(parent Context, c context.Context) Context {
	return NewContext(c, parent.Instances(), parent.Config())
}
