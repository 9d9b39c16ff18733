package global_test

import (
	"context"
	"testing"
	"time"

	"github.com/maskrapp/egress/internal/addrset"
	"github.com/maskrapp/egress/internal/config"
	"github.com/maskrapp/egress/internal/global"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedContextsShareInstances(t *testing.T) {
	instances := &global.Instances{LocalDomains: addrset.Parse("relay.example.net")}
	cfg := &config.Config{}

	root, cancel := global.WithCancel(global.NewContext(context.Background(), instances, cfg))
	msg, cancelMsg := global.WithTimeout(root, time.Minute)
	defer cancelMsg()

	assert.Same(t, instances, msg.Instances())
	assert.Same(t, cfg, msg.Config())
	_, ok := msg.Deadline()
	assert.True(t, ok)

	cancel()
	select {
	case <-msg.Done():
	case <-time.After(time.Second):
		require.Fail(t, "cancelling the root did not cancel the message context")
	}
	assert.ErrorIs(t, msg.Err(), context.Canceled)
}
