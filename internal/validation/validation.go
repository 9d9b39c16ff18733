package validation

import (
	"context"
	"sync"
	"time"

	"github.com/maskrapp/egress/internal/check"
	"github.com/maskrapp/egress/internal/validation/checks"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MailValidator authenticates mail from origins that are not local. Local
// origins, including our own listening addresses rewritten to loopback, are
// trusted and never reach it.
type MailValidator struct {
	checks []check.Check
	log    logrus.FieldLogger
}

type CheckResponse struct {
	Reject bool
	Reason string
	Data   map[string]any
}

// NewValidator runs SPF and DKIM unless other checks are given.
func NewValidator(log logrus.FieldLogger, with ...check.Check) *MailValidator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(with) == 0 {
		with = []check.Check{
			checks.SpfCheck{},
			checks.DkimCheck{},
		}
	}
	return &MailValidator{checks: with, log: log}
}

// RunChecks runs all checks concurrently. Mail passes if SPF or DKIM passes.
func (v *MailValidator) RunChecks(c context.Context, values check.CheckValues) CheckResponse {
	stateMutex := sync.Mutex{}
	state := make(map[string]any)
	messages := make(map[string]string)

	eg, ctx := errgroup.WithContext(c)
	start := time.Now()
	for _, value := range v.checks {
		value := value
		eg.Go(func() error {
			now := time.Now()
			result := value.Validate(ctx, values)
			v.log.Debugf("finished check %v in %vms: %v", value.Name(), time.Since(now).Milliseconds(), result.Message)

			stateMutex.Lock()
			defer stateMutex.Unlock()
			for k, d := range result.Data {
				state[k] = d
			}
			messages[value.Name()] = result.Message
			return nil
		})
	}
	_ = eg.Wait()
	v.log.Debugf("Finished all checks in %vms", time.Since(start).Milliseconds())

	if state["spf_pass"] == true || state["dkim_pass"] == true {
		return CheckResponse{Data: state}
	}
	return CheckResponse{
		Reject: true,
		Reason: "mail did not pass SPF or DKIM: " + summarize(messages),
		Data:   state,
	}
}

func summarize(messages map[string]string) string {
	var out string
	for _, name := range []string{"spf", "dkim"} {
		msg, ok := messages[name]
		if !ok {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += name + ": " + msg
	}
	return out
}
