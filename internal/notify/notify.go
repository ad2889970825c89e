// Package notify delivers short availability messages over side channels.
// Destinations are bound when a notifier is constructed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Notifier interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Send(ctx context.Context, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, message); err != nil {
			slog.Warn("notification failed", slog.String("notifier", n.Name()), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		slog.Info("notification sent", slog.String("notifier", n.Name()))
	}
	return errors.Join(errs...)
}

// truncate cuts s to at most max bytes on a rune boundary, marking the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	const marker = "…"
	cut := max - len(marker)
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut] + marker
}
