package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/maskrapp/egress/internal/envelope"
	"github.com/sirupsen/logrus"
)

const wildcard = "*"

var ErrNoSmarthost = errors.New("no smarthost configured")

// Mailer hands messages to the smarthost over a connection bound to the
// source address chosen for the message, announcing the chosen HELO name.
type Mailer struct {
	smarthost string
	timeout   time.Duration
	log       logrus.FieldLogger
}

func New(smarthost string, log logrus.FieldLogger) *Mailer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Mailer{
		smarthost: smarthost,
		timeout:   30 * time.Second,
		log:       log,
	}
}

func (m *Mailer) Deliver(ctx context.Context, env *envelope.Envelope) error {
	if m.smarthost == "" {
		return ErrNoSmarthost
	}
	if env.Notes.OutboundHelo == "" {
		return errors.New("outbound identity was not selected")
	}

	dialer, err := dialerFor(env.Notes.OutboundIP, m.timeout)
	if err != nil {
		return err
	}
	conn, err := dialer.DialContext(ctx, "tcp", m.smarthost)
	if err != nil {
		return fmt.Errorf("dial %v from %v: %w", m.smarthost, env.Notes.OutboundIP, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	host, _, _ := net.SplitHostPort(m.smarthost)
	cl, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer cl.Close()

	if err := cl.Hello(env.Notes.OutboundHelo); err != nil {
		return err
	}
	if err := cl.Mail(env.From, nil); err != nil {
		return err
	}
	for _, rcpt := range env.To {
		if err := cl.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %v: %w", rcpt, err)
		}
	}
	wc, err := cl.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(env.Data); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	if err := cl.Quit(); err != nil {
		m.log.Debugf("QUIT to %v failed: %v", m.smarthost, err)
	}

	m.log.WithFields(logrus.Fields{
		"helo": env.Notes.OutboundHelo,
		"ip":   env.Notes.OutboundIP,
	}).Debugf("Delivered mail from %v to %v via %v", env.From, env.To, m.smarthost)
	return nil
}

func dialerFor(ip string, timeout time.Duration) (*net.Dialer, error) {
	d := &net.Dialer{Timeout: timeout}
	if ip == "" || ip == wildcard {
		return d, nil
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid outbound address %q", ip)
	}
	d.LocalAddr = &net.TCPAddr{IP: parsed}
	return d, nil
}
