package mailer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/maskrapp/egress/internal/envelope"
	"github.com/mhale/smtpd"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	origin net.Addr
	from   string
	to     []string
	data   []byte
}

func startSmarthost(t *testing.T) (string, <-chan received) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ch := make(chan received, 1)
	srv := &smtpd.Server{
		Hostname: "smarthost.test",
		Appname:  "smarthost",
		Handler: func(origin net.Addr, from string, to []string, data []byte) error {
			ch <- received{origin: origin, from: from, to: to, data: data}
			return nil
		},
	}
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String(), ch
}

func TestDeliverUsesSelectedIdentity(t *testing.T) {
	addr, ch := startSmarthost(t)
	logger, _ := test.NewNullLogger()
	m := New(addr, logger)

	env := &envelope.Envelope{
		From: "alice@example.com",
		To:   []string{"bob@example.org", "carol@example.org"},
		Data: []byte("Subject: hi\r\n\r\nhello\r\n"),
		Notes: envelope.Notes{
			OutboundHelo: "mail.example.com",
			OutboundIP:   "127.0.0.1",
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Deliver(ctx, env))

	select {
	case got := <-ch:
		assert.Equal(t, "alice@example.com", got.from)
		assert.Equal(t, env.To, got.to)
		assert.Contains(t, string(got.data), "hello")
		assert.Contains(t, string(got.data), "mail.example.com", "the HELO name ends up in the Received header")
		tcp, ok := got.origin.(*net.TCPAddr)
		require.True(t, ok)
		assert.Equal(t, "127.0.0.1", tcp.IP.String())
	case <-time.After(10 * time.Second):
		t.Fatal("smarthost did not receive the message")
	}
}

func TestDeliverWildcardDoesNotBind(t *testing.T) {
	addr, ch := startSmarthost(t)
	logger, _ := test.NewNullLogger()
	m := New(addr, logger)

	env := &envelope.Envelope{
		From:  "alice@example.com",
		To:    []string{"bob@example.org"},
		Data:  []byte("Subject: hi\r\n\r\nhello\r\n"),
		Notes: envelope.Notes{OutboundHelo: "mail.example.com", OutboundIP: "*"},
	}
	require.NoError(t, m.Deliver(context.Background(), env))
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatal("smarthost did not receive the message")
	}
}

func TestDeliverRequiresIdentity(t *testing.T) {
	logger, _ := test.NewNullLogger()

	err := New("", logger).Deliver(context.Background(), &envelope.Envelope{})
	assert.ErrorIs(t, err, ErrNoSmarthost)

	err = New("127.0.0.1:25", logger).Deliver(context.Background(), &envelope.Envelope{})
	assert.Error(t, err)
}

func TestDialerFor(t *testing.T) {
	d, err := dialerFor("*", time.Second)
	require.NoError(t, err)
	assert.Nil(t, d.LocalAddr)

	d, err = dialerFor("10.0.0.5", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:0", d.LocalAddr.String())

	_, err = dialerFor("not-an-ip", time.Second)
	assert.Error(t, err)
}
