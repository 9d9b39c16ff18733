package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/maskrapp/egress/internal/addrset"
	"github.com/maskrapp/egress/internal/audit"
	"github.com/maskrapp/egress/internal/config"
	"github.com/maskrapp/egress/internal/global"
	"github.com/maskrapp/egress/internal/hosts"
	"github.com/maskrapp/egress/internal/identity"
	"github.com/maskrapp/egress/internal/inbound"
	"github.com/maskrapp/egress/internal/mailer"
	"github.com/maskrapp/egress/internal/smtp"
	"github.com/maskrapp/egress/internal/validation"
	"github.com/sirupsen/logrus"
)

func main() {

	cfg := config.New()

	ll, err := logrus.ParseLevel(cfg.Logger.LogLevel)
	if err != nil {
		ll = logrus.DebugLevel
	}
	logrus.SetLevel(ll)

	listenIPs := addrset.Parse(cfg.IPs.Listen)
	outboundIPs := addrset.Parse(cfg.IPs.Outbound)
	defaultIP := identity.DefaultIP(cfg.Outbound.MailIP, cfg.Outbound.DefaultIP, outboundIPs)

	source := hostsSource(cfg)

	var recorder audit.Recorder = audit.Discard
	if cfg.Database.MongoURI != "" {
		m, err := audit.NewMongo(context.Background(), cfg.Database.MongoURI, logrus.StandardLogger())
		if err != nil {
			logrus.Panicf("mongo error: %s", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.Close(ctx); err != nil {
				logrus.Error(err)
			}
		}()
		recorder = m
	}

	instances := &global.Instances{
		Selector: identity.New(identity.Config{
			Hostname:  cfg.SMTP.Hostname,
			DefaultIP: defaultIP,
			Addrs:     outboundIPs,
			Forced:    cfg.Outbound.MailIP != "",
		}, source, recorder, logrus.StandardLogger()),
		Normalizer:   inbound.NewNormalizer(listenIPs, logrus.StandardLogger()),
		Mailer:       mailer.New(cfg.SMTP.Smarthost, logrus.StandardLogger()),
		Validator:    validation.NewValidator(logrus.StandardLogger()),
		LocalDomains: addrset.Parse(cfg.SMTP.LocalDomains),
	}

	globalContext, cancel := global.WithCancel(global.NewContext(context.Background(), instances, cfg))
	defer cancel()

	logrus.WithFields(logrus.Fields{
		"listen_ips":   listenIPs.String(),
		"outbound_ips": outboundIPs.String(),
		"default_ip":   defaultIP,
		"hosts":        source.String(),
	}).Info("Starting service...")

	server := smtp.New(globalContext)
	ln, err := net.Listen("tcp", cfg.SMTP.Addr)
	if err != nil {
		logrus.Panicf("listen error: %s", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := server.Serve(ln); err != nil {
			logrus.Error("SMTPD error: ", err)
		}
	}()
	<-sigChan
	logrus.Info("Gracefully shutting down...")
	ln.Close()
}

func hostsSource(cfg *config.Config) hosts.Source {
	switch cfg.Outbound.HostsSource {
	case "file":
		return hosts.File{Path: cfg.Outbound.HostsFile}
	case "postgres":
		p, err := hosts.OpenPostgres(cfg.Database.PostgresURI)
		if err != nil {
			logrus.Panicf("postgres error: %s", err)
		}
		return p
	default:
		logrus.Panicf("unknown OUTBOUND_HOSTS_SOURCE %q", cfg.Outbound.HostsSource)
		return nil
	}
}
