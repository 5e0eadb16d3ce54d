package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gridsub/gridsub/pkg/errors"
)

// CheckCertificate verifies the user's grid certificate is valid with more
// than one hour remaining. Groups flagged as needing the certificate call
// this before submission so the failure surfaces on the submit host, not
// deep inside the scheduler.
func CheckCertificate(ctx context.Context, runner Runner) error {
	out, err := runner.Output(ctx, Command{Name: "voms-proxy-info"})
	if err != nil {
		return errors.JoinErrors(errors.ErrBadCertificate, err)
	}

	fields := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	timeleft, ok := fields["timeleft"]
	if !ok {
		return fmt.Errorf("%w: no timeleft in proxy info", errors.ErrBadCertificate)
	}

	hours, err := strconv.Atoi(strings.SplitN(timeleft, ":", 2)[0])
	if err != nil {
		return fmt.Errorf("%w: unreadable timeleft %q", errors.ErrBadCertificate, timeleft)
	}
	if hours < 1 {
		return fmt.Errorf("%w: less than 1 hour remaining, renew with voms-proxy-init", errors.ErrBadCertificate)
	}
	return nil
}
