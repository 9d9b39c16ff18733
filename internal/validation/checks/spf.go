package checks

import (
	"context"
	"fmt"

	"blitiri.com.ar/go/spf"
	"github.com/maskrapp/egress/internal/check"
)

type SpfCheck struct {
	// Resolver overrides the system resolver, mostly for tests.
	Resolver spf.DNSResolver
}

func (c SpfCheck) Name() string {
	return "spf"
}

func (c SpfCheck) Validate(ctx context.Context, values check.CheckValues) check.CheckResult {
	opts := []spf.Option{spf.WithContext(ctx)}
	if c.Resolver != nil {
		opts = append(opts, spf.WithResolver(c.Resolver))
	}
	result, _ := spf.CheckHostWithSender(values.Ip, values.Helo, values.EnvelopeFrom, opts...)
	if result != spf.Pass {
		return check.CheckResult{
			Message: fmt.Sprintf("expected pass, but got %v", result),
			Success: false,
			Data: map[string]any{
				"spf_pass": false,
			},
		}
	}
	return check.CheckResult{
		Message: "SPF pass",
		Success: true,
		Data: map[string]any{
			"spf_pass": true,
		},
	}
}
