// Package pushsvc sends Web Push messages through a VAPID-authenticated
// provider.
package pushsvc

import (
	"context"
	"encoding/json"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/pkg/errors"

	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/notification"
)

const defaultTTL = 60 // seconds the push service may queue the message

// Payload presentation defaults applied when the caller leaves them blank.
const (
	defaultIcon  = "/icons/icon-192x192.png"
	defaultBadge = "/icons/badge-72x72.png"
	defaultTag   = "shule-notification"
)

type webpushService struct {
	options webpush.Options
	logger  core.Logger
}

var _ notification.PushSender = (*webpushService)(nil)

func NewWebpushService(conf *core.Config, logger core.Logger) *webpushService {
	return &webpushService{
		options: webpush.Options{
			Subscriber:      conf.Push.VAPIDSubject,
			VAPIDPublicKey:  conf.Push.VAPIDPublicKey,
			VAPIDPrivateKey: conf.Push.VAPIDPrivateKey,
			TTL:             defaultTTL,
		},
		logger: logger,
	}
}

// Send pushes one payload to one subscription. It returns
// notification.ErrSubscriptionGone when the provider reports 404/410; the
// stored subscription row is the caller's to delete.
func (svc *webpushService) Send(ctx context.Context, sub notification.PushSubscription, payload notification.PushPayload) error {
	if !sub.Valid() {
		return errors.New("push subscription is missing endpoint or keys")
	}

	if payload.Icon == "" {
		payload.Icon = defaultIcon
	}
	if payload.Badge == "" {
		payload.Badge = defaultBadge
	}
	if payload.Tag == "" {
		payload.Tag = defaultTag
	}
	if payload.Actions == nil {
		payload.Actions = []notification.PushAction{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshalling push payload")
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &svc.options)
	if err != nil {
		return errors.Wrap(err, "sending push")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return notification.ErrSubscriptionGone
	case resp.StatusCode >= http.StatusBadRequest:
		return errors.Errorf("push provider returned status %d", resp.StatusCode)
	}
	return nil
}
