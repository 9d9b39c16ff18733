package config

import (
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/maskrapp/egress/internal/hosts"
)

type Config struct {
	SMTP struct {
		Addr     string
		Hostname string
		// LocalDomains are accepted from any origin. Everything else is
		// only relayed for local origins.
		LocalDomains string
		Smarthost    string
	}
	IPs struct {
		// Listen and Outbound are comma-separated address lists.
		Listen   string
		Outbound string
	}
	Outbound struct {
		// MailIP pins every message to one address.
		MailIP    string
		DefaultIP string
		// HostsSource is "file" or "postgres".
		HostsSource string
		HostsFile   string
	}
	Database struct {
		PostgresURI string
		MongoURI    string
	}
	TLS struct {
		PrivateKeyPath  string
		CertificatePath string
	}
	Logger struct {
		LogLevel string
	}
	Production bool
}

func New() *Config {
	cfg := &Config{}

	cfg.SMTP.Addr = getOrDefault("SMTP_ADDR", "0.0.0.0:25")
	cfg.SMTP.Hostname = strings.TrimSpace(os.Getenv("SMTP_HOSTNAME"))
	if cfg.SMTP.Hostname == "" {
		cfg.SMTP.Hostname = hostname()
	}
	cfg.SMTP.LocalDomains = os.Getenv("LOCAL_DOMAINS")
	cfg.SMTP.Smarthost = os.Getenv("RELAY_SMARTHOST")

	configDir := getOrDefault("CONFIG_DIR", "config")
	cfg.IPs.Listen = getOrFile("LISTEN_IPS", filepath.Join(configDir, "listen-ips"))
	cfg.IPs.Outbound = getOrFile("MY_IPS", filepath.Join(configDir, "my-ips"))

	cfg.Outbound.MailIP = strings.TrimSpace(os.Getenv("OUTBOUND_MAIL_IP"))
	cfg.Outbound.DefaultIP = strings.TrimSpace(os.Getenv("OUTBOUND_DEFAULT_IP"))
	cfg.Outbound.HostsSource = strings.ToLower(getOrDefault("OUTBOUND_HOSTS_SOURCE", "file"))
	cfg.Outbound.HostsFile = getOrDefault("OUTBOUND_HOSTS_FILE", hosts.DefaultPath)

	cfg.Database.PostgresURI = os.Getenv("POSTGRES_URI")
	cfg.Database.MongoURI = os.Getenv("MONGO_URI")

	cfg.TLS.CertificatePath = os.Getenv("CERTIFICATE")
	cfg.TLS.PrivateKeyPath = os.Getenv("PRIVATE_KEY")

	cfg.Logger.LogLevel = getOrDefault("LOG_LEVEL", "debug")

	cfg.Production = getOrDefault("PRODUCTION", "true") == "true"

	return cfg
}

func getOrDefault(variable string, def string) string {
	result, ok := os.LookupEnv(variable)
	if !ok {
		return def
	}
	return result
}

// getOrFile returns the variable if set and the contents of path otherwise.
// A missing file is the same as an empty list.
func getOrFile(variable, path string) string {
	if result, ok := os.LookupEnv(variable); ok {
		return result
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost.localdomain"
	}
	return name
}
