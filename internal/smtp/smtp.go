package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/mail"
	"strings"
	"time"

	"github.com/DusanKasan/parsemail"
	"github.com/maskrapp/egress/internal/addrset"
	"github.com/maskrapp/egress/internal/check"
	"github.com/maskrapp/egress/internal/envelope"
	"github.com/maskrapp/egress/internal/global"
	"github.com/maskrapp/egress/internal/inbound"
	"github.com/maskrapp/egress/internal/validation"
	"github.com/mhale/smtpd"
	"github.com/sirupsen/logrus"
)

const messageTimeout = 5 * time.Minute

type Selector interface {
	Apply(ctx context.Context, env *envelope.Envelope) error
}

type Deliverer interface {
	Deliver(ctx context.Context, env *envelope.Envelope) error
}

type Validator interface {
	RunChecks(ctx context.Context, values check.CheckValues) validation.CheckResponse
}

// Relay holds the per-connection and per-message hooks of the listener.
type Relay struct {
	Normalizer   *inbound.Normalizer
	LocalDomains *addrset.Set
	Validator    Validator
	Selector     Selector
	Mailer       Deliverer
	Log          logrus.FieldLogger
}

func New(ctx global.Context) *smtpd.Server {
	instances := ctx.Instances()
	relay := &Relay{
		Normalizer:   instances.Normalizer,
		LocalDomains: instances.LocalDomains,
		Validator:    instances.Validator,
		Selector:     instances.Selector,
		Mailer:       instances.Mailer,
		Log:          logrus.StandardLogger(),
	}

	smtpdServer := &smtpd.Server{
		Addr:     ctx.Config().SMTP.Addr,
		Hostname: ctx.Config().SMTP.Hostname,
		Appname:  "egress",
		LogWrite: func(remoteIP, verb, line string) {
			if !strings.Contains(line, "ESMTP Service ready") {
				logrus.Debugf("[WRITE] %v %v %v", remoteIP, verb, line)
			}
		},
		LogRead: func(remoteIP, verb, line string) {
			logrus.Debugf("[READ] %v %v %v", remoteIP, verb, line)
		},
		HandlerRcpt: relay.Rcpt,
		Handler: func(origin net.Addr, from string, to []string, data []byte) error {
			msgCtx, cancel := global.WithTimeout(ctx, messageTimeout)
			defer cancel()
			return relay.Handle(msgCtx, origin, from, to, data)
		},
	}

	if ctx.Config().Production {
		cert, err := tls.LoadX509KeyPair(ctx.Config().TLS.CertificatePath, ctx.Config().TLS.PrivateKeyPath)
		if err != nil {
			logrus.Panic(err)
		}
		smtpdServer.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
		smtpdServer.TLSRequired = true
		logrus.Info("Enabled TLS")
	}

	return smtpdServer
}

// Rcpt accepts any recipient from local origins and only local domains
// from everyone else.
func (r *Relay) Rcpt(remoteAddr net.Addr, from, to string) bool {
	if r.Normalizer.IsLocal(remoteAddr) {
		return true
	}
	return r.LocalDomains.Has(envelope.Domain(to))
}

func (r *Relay) Handle(ctx context.Context, origin net.Addr, from string, to []string, data []byte) error {
	remote := r.Normalizer.NormalizeAddr(origin)
	env := &envelope.Envelope{
		Remote: remote,
		From:   from,
		To:     to,
		Data:   data,
	}
	log := r.Log.WithField("remote", remote.String())

	// smtpd has no HELO callback but puts the name in the Received header
	// it prepends to every message.
	if msg, err := mail.ReadMessage(bytes.NewReader(data)); err == nil {
		env.Helo = envelope.ReceivedHelo(msg.Header.Get("Received"))
	}

	if parsed, err := parsemail.Parse(bytes.NewReader(data)); err != nil {
		log.Warnf("error parsing incoming email: %v", err)
	} else {
		log.Debugf("Incoming mail %v from %v: %v", parsed.MessageID, from, parsed.Subject)
	}

	if !r.Normalizer.IsLocal(origin) {
		ip, ok := origin.(*net.TCPAddr)
		if !ok {
			return errors.New("error casting origin to net.TCPAddr")
		}
		result := r.Validator.RunChecks(ctx, check.CheckValues{
			EnvelopeFrom: from,
			Helo:         env.Helo,
			MailData:     string(data),
			Ip:           ip.IP,
		})
		if result.Reject {
			log.Infof("rejecting incoming mail for reason: %v", result.Reason)
			return errors.New(result.Reason)
		}
	}

	if err := r.Selector.Apply(ctx, env); err != nil {
		log.Errorf("outbound identity for %v: %v", env.SenderDomain(), err)
		return err
	}
	if err := r.Mailer.Deliver(ctx, env); err != nil {
		log.Errorf("mailer err: %v", err)
		return err
	}
	log.Debugf("Relayed mail from %v to %v", from, to)
	return nil
}
