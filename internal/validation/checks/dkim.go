package checks

import (
	"context"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
	"github.com/maskrapp/egress/internal/check"
)

type DkimCheck struct {
	// LookupTXT overrides the system resolver, mostly for tests.
	LookupTXT func(domain string) ([]string, error)
}

func (c DkimCheck) Name() string {
	return "dkim"
}

func (c DkimCheck) Validate(ctx context.Context, values check.CheckValues) check.CheckResult {
	verifications, err := dkim.VerifyWithOptions(strings.NewReader(values.MailData), &dkim.VerifyOptions{
		LookupTXT: c.LookupTXT,
	})
	if err != nil {
		return failed(err.Error())
	}
	if len(verifications) == 0 {
		return failed("message is not DKIM signed")
	}
	for _, v := range verifications {
		if v.Err == nil {
			return check.CheckResult{
				Message: "Found valid DKIM signature",
				Success: true,
				Data: map[string]any{
					"dkim_pass":   true,
					"dkim_domain": v.Domain,
				},
			}
		}
	}
	return failed("DKIM check failed")
}

func failed(msg string) check.CheckResult {
	return check.CheckResult{
		Message: msg,
		Success: false,
		Data: map[string]any{
			"dkim_pass": false,
		},
	}
}
