package dummydb

import (
	"context"
	"sort"

	"github.com/darasa/shule/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.notifications[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) QueryUserNotifications(ctx context.Context, userID string) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var notifs []notification.Notification
	for _, n := range repo.db.notifications {
		if n.UserID == userID {
			notifs = append(notifs, *n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id, userID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.notifications[id]
	if !ok || n.UserID != userID {
		return notification.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (repo *notificationRepository) GetPreferences(ctx context.Context, userID string, typ notification.Type) (notification.Preferences, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if prefs, ok := repo.db.preferences[prefsKey{userID, typ}]; ok {
		return *prefs, nil
	}
	return notification.Preferences{}, notification.ErrPreferencesNotFound
}

func (repo *notificationRepository) UpsertPreferences(ctx context.Context, prefs notification.Preferences) (notification.Preferences, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.preferences[prefsKey{prefs.UserID, prefs.Type}] = &prefs
	return prefs, nil
}

func (repo *notificationRepository) QueryPushSubscriptions(ctx context.Context, userID string) ([]notification.PushSubscription, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var subs []notification.PushSubscription
	for _, sub := range repo.db.subscriptions {
		if sub.UserID == userID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.Before(subs[j].CreatedAt) })
	return subs, nil
}

func (repo *notificationRepository) SavePushSubscription(ctx context.Context, sub notification.PushSubscription) (notification.PushSubscription, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// re-subscribing from the same browser refreshes the keys
	for id, existing := range repo.db.subscriptions {
		if existing.UserID == sub.UserID && existing.Endpoint == sub.Endpoint {
			delete(repo.db.subscriptions, id)
		}
	}
	repo.db.subscriptions[sub.ID] = &sub
	return sub, nil
}

func (repo *notificationRepository) DeletePushSubscription(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.subscriptions, id)
	return nil
}

func (repo *notificationRepository) DeletePushSubscriptionByEndpoint(ctx context.Context, userID, endpoint string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for id, sub := range repo.db.subscriptions {
		if sub.UserID == userID && sub.Endpoint == endpoint {
			delete(repo.db.subscriptions, id)
		}
	}
	return nil
}

func (repo *notificationRepository) CreateDelivery(ctx context.Context, d notification.Delivery) (notification.Delivery, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.deliveries[d.ID] = &d
	return d, nil
}

func (repo *notificationRepository) QueryDeliveries(ctx context.Context, notificationID string) ([]notification.Delivery, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var deliveries []notification.Delivery
	for _, d := range repo.db.deliveries {
		if d.NotificationID == notificationID {
			deliveries = append(deliveries, *d)
		}
	}
	sort.Slice(deliveries, func(i, j int) bool { return deliveries[i].SentAt.Before(deliveries[j].SentAt) })
	return deliveries, nil
}

func (repo *notificationRepository) GetDeliveryStats(ctx context.Context, notificationID string) (notification.DeliveryStats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats notification.DeliveryStats
	for _, d := range repo.db.deliveries {
		if d.NotificationID != notificationID {
			continue
		}
		stats.Total++
		switch d.Status {
		case notification.StatusPending:
			stats.Pending++
		case notification.StatusSent:
			stats.Sent++
		case notification.StatusDelivered:
			stats.Delivered++
		case notification.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
