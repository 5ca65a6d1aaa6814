package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasa/shule/core/notification"
)

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Data      null.JSON `db:"data"`
	IsRead    bool      `db:"is_read"`
	CreatedAt null.Time `db:"created_at"`
}

func (r notificationRow) toNotification() (notification.Notification, error) {
	n := notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      notification.Type(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		IsRead:    r.IsRead,
		CreatedAt: r.CreatedAt.Time,
	}
	if r.Data.Valid {
		if err := json.Unmarshal(r.Data.JSON, &n.Data); err != nil {
			return notification.Notification{}, errors.Wrap(err, "decoding notification data")
		}
	}
	return n, nil
}

type deliveryRow struct {
	ID             string    `db:"id"`
	NotificationID string    `db:"notification_id"`
	Method         string    `db:"delivery_method"`
	Status         string    `db:"status"`
	SentAt         null.Time `db:"sent_at"`
	DeliveredAt    null.Time `db:"delivered_at"`
}

func (r deliveryRow) toDelivery() notification.Delivery {
	return notification.Delivery{
		ID:             r.ID,
		NotificationID: r.NotificationID,
		Method:         notification.DeliveryMethod(r.Method),
		Status:         notification.DeliveryStatus(r.Status),
		SentAt:         r.SentAt.Time,
		DeliveredAt:    r.DeliveredAt.Time,
	}
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	var data null.JSON
	if n.Data != nil {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return notification.Notification{}, errors.Wrap(err, "encoding notification data")
		}
		data = null.JSONFrom(raw)
	}

	const query = `
INSERT INTO notification (id, user_id, type, title, message, data, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, query,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, data, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "creating notification")
	}
	return n, nil
}

func (repo *notificationRepository) QueryUserNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	var rows []notificationRow
	const query = `SELECT * FROM notification WHERE user_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toNotification()
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id, userID string) error {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE notification SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo *notificationRepository) GetPreferences(ctx context.Context, userID string, typ notification.Type) (notification.Preferences, error) {
	var prefs notification.Preferences
	const query = `
SELECT user_id, type, email_enabled, push_enabled, sms_enabled, updated_at
FROM notification_preferences WHERE user_id = $1 AND type = $2`
	row := repo.db.QueryRowxContext(ctx, query, userID, string(typ))
	err := row.Scan(&prefs.UserID, &prefs.Type, &prefs.EmailEnabled, &prefs.PushEnabled, &prefs.SMSEnabled, &prefs.UpdatedAt)
	if err == sql.ErrNoRows {
		return notification.Preferences{}, notification.ErrPreferencesNotFound
	}
	if err != nil {
		return notification.Preferences{}, errors.Wrap(err, "getting preferences")
	}
	return prefs, nil
}

func (repo *notificationRepository) UpsertPreferences(ctx context.Context, prefs notification.Preferences) (notification.Preferences, error) {
	const query = `
INSERT INTO notification_preferences (user_id, type, email_enabled, push_enabled, sms_enabled, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, type) DO UPDATE
SET email_enabled = EXCLUDED.email_enabled,
    push_enabled  = EXCLUDED.push_enabled,
    sms_enabled   = EXCLUDED.sms_enabled,
    updated_at    = EXCLUDED.updated_at`
	_, err := repo.db.ExecContext(ctx, query,
		prefs.UserID, string(prefs.Type), prefs.EmailEnabled, prefs.PushEnabled, prefs.SMSEnabled, prefs.UpdatedAt,
	)
	if err != nil {
		return notification.Preferences{}, errors.Wrap(err, "upserting preferences")
	}
	return prefs, nil
}

func (repo *notificationRepository) QueryPushSubscriptions(ctx context.Context, userID string) ([]notification.PushSubscription, error) {
	var subs []notification.PushSubscription
	const query = `
SELECT id, user_id, endpoint, p256dh, auth, created_at
FROM push_subscription WHERE user_id = $1 ORDER BY created_at`
	rows, err := repo.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "querying push subscriptions")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var sub notification.PushSubscription
		if err = rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "querying push subscriptions")
		}
		subs = append(subs, sub)
	}
	return subs, errors.Wrap(rows.Err(), "querying push subscriptions")
}

func (repo *notificationRepository) SavePushSubscription(ctx context.Context, sub notification.PushSubscription) (notification.PushSubscription, error) {
	// re-subscribing from the same browser refreshes the keys
	const query = `
INSERT INTO push_subscription (id, user_id, endpoint, p256dh, auth, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, endpoint) DO UPDATE
SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`
	_, err := repo.db.ExecContext(ctx, query, sub.ID, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, sub.CreatedAt)
	if err != nil {
		return notification.PushSubscription{}, errors.Wrap(err, "saving push subscription")
	}
	return sub, nil
}

func (repo *notificationRepository) DeletePushSubscription(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM push_subscription WHERE id = $1`, id)
	return errors.Wrap(err, "deleting push subscription")
}

func (repo *notificationRepository) DeletePushSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM push_subscription WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	return errors.Wrap(err, "deleting push subscription")
}

func (repo *notificationRepository) CreateDelivery(ctx context.Context, d notification.Delivery) (notification.Delivery, error) {
	deliveredAt := null.NewTime(d.DeliveredAt, !d.DeliveredAt.IsZero())
	const query = `
INSERT INTO notification_delivery (id, notification_id, delivery_method, status, sent_at, delivered_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, query,
		d.ID, d.NotificationID, string(d.Method), string(d.Status), d.SentAt, deliveredAt,
	)
	if err != nil {
		return notification.Delivery{}, errors.Wrap(err, "creating delivery")
	}
	return d, nil
}

func (repo *notificationRepository) QueryDeliveries(ctx context.Context, notificationID string) ([]notification.Delivery, error) {
	var rows []deliveryRow
	const query = `SELECT * FROM notification_delivery WHERE notification_id = $1 ORDER BY sent_at`
	if err := repo.db.SelectContext(ctx, &rows, query, notificationID); err != nil {
		return nil, errors.Wrap(err, "querying deliveries")
	}
	deliveries := make([]notification.Delivery, 0, len(rows))
	for _, row := range rows {
		deliveries = append(deliveries, row.toDelivery())
	}
	return deliveries, nil
}

func (repo *notificationRepository) GetDeliveryStats(ctx context.Context, notificationID string) (notification.DeliveryStats, error) {
	var stats notification.DeliveryStats
	const query = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'pending'),
       COUNT(*) FILTER (WHERE status = 'sent'),
       COUNT(*) FILTER (WHERE status = 'delivered'),
       COUNT(*) FILTER (WHERE status = 'failed')
FROM notification_delivery WHERE notification_id = $1`
	row := repo.db.QueryRowxContext(ctx, query, notificationID)
	if err := row.Scan(&stats.Total, &stats.Pending, &stats.Sent, &stats.Delivered, &stats.Failed); err != nil {
		return notification.DeliveryStats{}, errors.Wrap(err, "getting delivery stats")
	}
	return stats, nil
}
