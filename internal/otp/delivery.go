// Package otp routes freshly issued one-time codes to the contact's channel.
package otp

import (
	"context"
	"time"

	"go.uber.org/zap"

	"swadharma/backend/internal/devotp"
	"swadharma/backend/internal/security"
)

// Delivery is one code to hand to a channel.
type Delivery struct {
	Channel   security.Channel
	Contact   string
	Purpose   string
	Code      string
	ExpiresAt time.Time
}

// SMSSender sends a code by text message.
type SMSSender interface {
	Configured() bool
	Send(ctx context.Context, phone, code string) error
}

// Dispatcher delivers codes. Phones go to the SMS client when it is configured; everything
// else falls back to the console stub. When a dev store is set the plaintext is kept there too.
type Dispatcher struct {
	log *zap.Logger
	sms SMSSender
	dev devotp.Store
}

// NewDispatcher returns a Dispatcher. sms and dev may be nil.
func NewDispatcher(log *zap.Logger, sms SMSSender, dev devotp.Store) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{log: log, sms: sms, dev: dev}
}

// Deliver sends d. A returned error means the user did not receive the code.
func (d *Dispatcher) Deliver(ctx context.Context, del Delivery) error {
	if d.dev != nil {
		d.dev.Put(ctx, del.Contact, del.Purpose, del.Code, del.ExpiresAt)
	}
	if del.Channel == security.ChannelPhone && d.sms != nil && d.sms.Configured() {
		if err := d.sms.Send(ctx, del.Contact, del.Code); err != nil {
			d.log.Error("otp sms delivery failed", zap.String("purpose", del.Purpose), zap.Error(err))
			return err
		}
		return nil
	}
	d.log.Info("[DEV] OTP for "+del.Contact,
		zap.String("channel", string(del.Channel)),
		zap.String("purpose", del.Purpose),
		zap.String("code", del.Code),
		zap.Time("expires_at", del.ExpiresAt),
	)
	return nil
}
