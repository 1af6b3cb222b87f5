// Package notify delivers the once-per-run outcome notification. Delivery
// is best-effort: failures are logged by the caller and never change the
// run's exit status.
package notify

import "context"

// Notifier sends a single human-readable notification.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Noop discards notifications. Used when no provider is configured.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(_ context.Context, _, _ string) error {
	return nil
}
