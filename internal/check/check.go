package check

import (
	"context"
	"net"
)

type CheckResult struct {
	Message string
	Success bool
	Data    map[string]any
}

type CheckValues struct {
	EnvelopeFrom string
	Helo         string
	MailData     string
	Ip           net.IP
}

type Check interface {
	Name() string
	Validate(context.Context, CheckValues) CheckResult
}
