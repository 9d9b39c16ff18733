package audit

import (
	"context"
	"time"
)

// Decision is an accepted outbound identity.
type Decision struct {
	Time time.Time `bson:"time"`
	// Key is the destination key the selection was made for.
	Key string `bson:"key"`
	// Source is the mapping entry that was used, either a domain or "default".
	Source   string `bson:"source"`
	Helo     string `bson:"helo"`
	IP       string `bson:"ip"`
	Fallback bool   `bson:"fallback"`
}

type Recorder interface {
	Record(ctx context.Context, d Decision)
}

// Discard drops every decision.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, Decision) {}
