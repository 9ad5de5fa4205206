package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/domain"
)

type AlertType string

const (
	AlertDiscord AlertType = "discord"
	AlertEmail   AlertType = "email"
)

var ErrUnknownAlertType = errors.New("unknown alert_type")

// ParseAlertTypes reads a comma-separated list like "discord,email".
func ParseAlertTypes(s string) ([]AlertType, error) {
	var out []AlertType
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		switch AlertType(p) {
		case "":
			continue
		case AlertDiscord, AlertEmail:
			out = append(out, AlertType(p))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownAlertType, p)
		}
	}
	return out, nil
}

// Payload is the transport-agnostic alert body.
type Payload struct {
	Action    string    `json:"action"`
	Message   []string  `json:"message"`
	AlertType AlertType `json:"alert_type"`
}

func NewPayload(ev domain.ChangeEvent, t AlertType) Payload {
	msg := make([]string, len(ev.Domains))
	for i, d := range ev.Domains {
		msg[i] = string(d)
	}
	return Payload{Action: string(ev.Action), Message: msg, AlertType: t}
}

// FormatList renders hosts as ['a.com', 'b.com'].
func FormatList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

type Notifier interface {
	Send(ctx context.Context, p Payload) error
}

// Dispatcher turns one change event into one payload per configured alert
// type. Failures are logged and returned but never retried.
type Dispatcher struct {
	Logger    *zap.Logger
	Notifiers map[AlertType]Notifier
	Types     []AlertType
}

func NewDispatcher(log *zap.Logger, types []AlertType, notifiers map[AlertType]Notifier) *Dispatcher {
	return &Dispatcher{Logger: log, Notifiers: notifiers, Types: types}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.ChangeEvent) error {
	if len(ev.Domains) == 0 {
		return nil
	}
	var errs error
	for _, t := range d.Types {
		p := NewPayload(ev, t)
		n, ok := d.Notifiers[t]
		if !ok || n == nil {
			err := fmt.Errorf("%w: %s not configured", ErrUnknownAlertType, t)
			d.Logger.Error("alert_invalid_type", zap.String("alert_type", string(t)))
			errs = multierr.Append(errs, err)
			continue
		}
		if err := n.Send(ctx, p); err != nil {
			d.Logger.Warn("alert_send_failed",
				zap.String("alert_type", string(t)),
				zap.Strings("domains", p.Message),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", t, err))
			continue
		}
		d.Logger.Info("alert_sent",
			zap.String("alert_type", string(t)),
			zap.String("action", p.Action),
			zap.Int("domains", len(p.Message)),
		)
	}
	return errs
}
