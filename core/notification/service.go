package notification

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/user"
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		QueryUserNotifications(ctx context.Context, userID string) ([]Notification, error)
		MarkNotificationRead(ctx context.Context, id, userID string) error

		// GetPreferences returns ErrPreferencesNotFound when the user has no
		// row for the given type.
		GetPreferences(ctx context.Context, userID string, typ Type) (Preferences, error)
		UpsertPreferences(ctx context.Context, prefs Preferences) (Preferences, error)

		QueryPushSubscriptions(ctx context.Context, userID string) ([]PushSubscription, error)
		SavePushSubscription(ctx context.Context, sub PushSubscription) (PushSubscription, error)
		DeletePushSubscription(ctx context.Context, id string) error
		DeletePushSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) error

		CreateDelivery(ctx context.Context, d Delivery) (Delivery, error)
		QueryDeliveries(ctx context.Context, notificationID string) ([]Delivery, error)
		GetDeliveryStats(ctx context.Context, notificationID string) (DeliveryStats, error)
	}

	// PushPayload is the JSON document handed to the push transport.
	PushPayload struct {
		Title              string                 `json:"title"`
		Body               string                 `json:"body"`
		Icon               string                 `json:"icon,omitempty"`
		Badge              string                 `json:"badge,omitempty"`
		Data               map[string]interface{} `json:"data,omitempty"`
		Tag                string                 `json:"tag,omitempty"`
		RequireInteraction bool                   `json:"requireInteraction"`
		Actions            []PushAction           `json:"actions"`
	}

	PushAction struct {
		Action string `json:"action"`
		Title  string `json:"title"`
		Icon   string `json:"icon,omitempty"`
	}

	// PushSender sends one payload to one subscription. It returns
	// ErrSubscriptionGone when the push provider reports the subscription
	// expired (404/410); deleting the stored row is the caller's job.
	PushSender interface {
		Send(ctx context.Context, sub PushSubscription, payload PushPayload) error
	}

	// SMSSender sends one text message. Implementations without a configured
	// transport return ErrSMSUnsupported.
	SMSSender interface {
		Send(ctx context.Context, to, body string) error
	}

	// Service fans a notification out to the recipient's enabled channels.
	// The in-app row is the canonical record; the other channels are
	// best-effort and their failures never abort each other.
	Service struct {
		repo    Repository
		usrRepo user.Repository
		mailSvc core.EmailService
		pushSvc PushSender
		smsSvc  SMSSender
		logger  core.Logger
		conf    *core.Config
	}
)

func NewService(
	repo Repository,
	usrRepo user.Repository,
	mailSvc core.EmailService,
	pushSvc PushSender,
	smsSvc SMSSender,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:    repo,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
		pushSvc: pushSvc,
		smsSvc:  smsSvc,
		logger:  logger,
		conf:    conf,
	}
}

// Deliver persists n for userID and fans it out per the user's preferences.
// Only the in-app persistence failure is returned; channel failures are
// logged and recorded, never escalated.
func (svc *Service) Deliver(ctx context.Context, userID string, n Notification) error {
	prefs := svc.preferences(ctx, userID, n.Type)

	n.ID = uuid.New().String()
	n.UserID = userID
	n.CreatedAt = time.Now().UTC()
	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("persisting notification for user %s: %v", userID, err), err)
		return errors.Wrap(err, "persisting notification")
	}

	// in-app needs no transport step; the row above is the delivery
	svc.recordDelivery(ctx, n.ID, MethodInApp, StatusDelivered)

	if prefs.EmailEnabled {
		svc.deliverEmail(ctx, userID, n)
	}
	if prefs.PushEnabled {
		svc.deliverPush(ctx, userID, n)
	}
	if prefs.SMSEnabled {
		svc.deliverSMS(ctx, userID, n)
	}
	return nil
}

// BulkDeliver fans Deliver out concurrently to every user; one user's
// failure never affects the others and is not reported to the caller.
func (svc *Service) BulkDeliver(ctx context.Context, userIDs []string, n Notification) {
	var wg sync.WaitGroup
	for _, userID := range userIDs {
		userID := userID
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Deliver(ctx, userID, n); err != nil {
				svc.logger.Error(fmt.Sprintf("bulk delivery to user %s: %v", userID, err), err)
			}
		}()
	}
	wg.Wait()
}

// QueryDeliveries lists the per-channel tracking rows for one notification.
func (svc *Service) QueryDeliveries(ctx context.Context, notificationID string) ([]Delivery, error) {
	return svc.repo.QueryDeliveries(ctx, notificationID)
}

// DeliveryStats aggregates delivery-row counts by status for one notification.
func (svc *Service) DeliveryStats(ctx context.Context, notificationID string) (DeliveryStats, error) {
	return svc.repo.GetDeliveryStats(ctx, notificationID)
}

// QueryForUser lists a user's in-app notifications, newest first.
func (svc *Service) QueryForUser(ctx context.Context, userID string) ([]Notification, error) {
	return svc.repo.QueryUserNotifications(ctx, userID)
}

func (svc *Service) MarkRead(ctx context.Context, id, userID string) error {
	return svc.repo.MarkNotificationRead(ctx, id, userID)
}

// GetPreferences returns the stored row, or the all-disabled default when
// none exists.
func (svc *Service) GetPreferences(ctx context.Context, userID string, typ Type) (Preferences, error) {
	prefs, err := svc.repo.GetPreferences(ctx, userID, typ)
	if err == ErrPreferencesNotFound {
		return Preferences{UserID: userID, Type: typ}, nil
	}
	return prefs, err
}

func (svc *Service) UpdatePreferences(ctx context.Context, prefs Preferences) (Preferences, error) {
	prefs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpsertPreferences(ctx, prefs)
}

// Subscribe stores a push subscription for the user.
func (svc *Service) Subscribe(ctx context.Context, userID string, sub PushSubscription) (PushSubscription, error) {
	if !sub.Valid() {
		return PushSubscription{}, core.NewValidationError(
			errors.New("invalid push subscription"),
			core.FieldError{Field: "subscription", Error: "endpoint, p256dh and auth are all required"},
		)
	}
	sub.ID = uuid.New().String()
	sub.UserID = userID
	sub.CreatedAt = time.Now().UTC()
	return svc.repo.SavePushSubscription(ctx, sub)
}

func (svc *Service) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return svc.repo.DeletePushSubscriptionByEndpoint(ctx, userID, endpoint)
}

// preferences loads the per-type opt-ins; any lookup failure (including a
// missing row) degrades to in-app only.
func (svc *Service) preferences(ctx context.Context, userID string, typ Type) Preferences {
	prefs, err := svc.repo.GetPreferences(ctx, userID, typ)
	if err != nil {
		if err != ErrPreferencesNotFound {
			svc.logger.Warn(fmt.Sprintf("loading preferences for user %s: %v", userID, err))
		}
		return Preferences{UserID: userID, Type: typ}
	}
	return prefs
}

// deliverEmail resolves the recipient and hands the message to the mail
// service. The transport is asynchronous and gives no per-message outcome,
// so the delivery row records the attempt.
func (svc *Service) deliverEmail(ctx context.Context, userID string, n Notification) {
	usr, err := svc.usrRepo.GetUserByID(ctx, userID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("email delivery: resolving user %s: %v", userID, err))
		return
	}
	if usr.Email == "" {
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      n.Title,
		TemplateName: "notification",
		TemplateData: struct {
			Notification Notification
			UserName     string
			ActionURL    string
		}{n, usr.Name, svc.conf.FrontendBaseURL + ActionURL(n)},
	})

	svc.recordDelivery(ctx, n.ID, MethodEmail, StatusSent)
}

// deliverPush sends to every stored subscription and deletes the ones the
// provider reports gone. One delivery row is recorded per call, not per
// subscription: sent when at least one device took it, failed otherwise.
func (svc *Service) deliverPush(ctx context.Context, userID string, n Notification) {
	if svc.pushSvc == nil {
		return
	}
	subs, err := svc.repo.QueryPushSubscriptions(ctx, userID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("push delivery: loading subscriptions for user %s: %v", userID, err))
		return
	}
	if len(subs) == 0 {
		return
	}

	data := map[string]interface{}{"url": ActionURL(n), "notificationId": n.ID}
	for k, v := range n.Data {
		data[k] = v
	}
	payload := PushPayload{
		Title: n.Title,
		Body:  n.Message,
		Data:  data,
		Tag:   string(n.Type),
	}

	var succeeded int
	for _, sub := range subs {
		if err := svc.pushSvc.Send(ctx, sub, payload); err != nil {
			if errors.Cause(err) == ErrSubscriptionGone {
				if dErr := svc.repo.DeletePushSubscription(ctx, sub.ID); dErr != nil {
					svc.logger.Warn(fmt.Sprintf("deleting gone subscription %s: %v", sub.ID, dErr))
				}
				continue
			}
			svc.logger.Warn(fmt.Sprintf("push delivery to %s: %v", sub.ID, err))
			continue
		}
		succeeded++
	}

	status := StatusFailed
	if succeeded > 0 {
		status = StatusSent
	}
	svc.recordDelivery(ctx, n.ID, MethodPush, status)
}

// deliverSMS resolves the phone number and sends through the SMS transport;
// an unconfigured transport yields a failed row rather than a fabricated
// sent status.
func (svc *Service) deliverSMS(ctx context.Context, userID string, n Notification) {
	usr, err := svc.usrRepo.GetUserByID(ctx, userID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("sms delivery: resolving user %s: %v", userID, err))
		return
	}
	if usr.PhoneNumber == "" {
		return
	}

	status := StatusSent
	if err := svc.smsSvc.Send(ctx, usr.PhoneNumber, n.Title+": "+n.Message); err != nil {
		if errors.Cause(err) != ErrSMSUnsupported {
			svc.logger.Warn(fmt.Sprintf("sms delivery to user %s: %v", userID, err))
		}
		status = StatusFailed
	}
	svc.recordDelivery(ctx, n.ID, MethodSMS, status)
}

func (svc *Service) recordDelivery(ctx context.Context, notificationID string, method DeliveryMethod, status DeliveryStatus) {
	d := Delivery{
		ID:             uuid.New().String(),
		NotificationID: notificationID,
		Method:         method,
		Status:         status,
		SentAt:         time.Now().UTC(),
	}
	if status == StatusDelivered {
		d.DeliveredAt = d.SentAt
	}
	if _, err := svc.repo.CreateDelivery(ctx, d); err != nil {
		svc.logger.Warn(fmt.Sprintf("recording %s delivery for notification %s: %v", method, notificationID, err))
	}
}
