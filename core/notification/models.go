package notification

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound            = errors.New("notification not found")
	ErrPreferencesNotFound = errors.New("notification preferences not found")
	ErrSubscriptionGone    = errors.New("push subscription gone")
	ErrSMSUnsupported      = errors.New("sms transport not supported")
)

// Type is the closed set of notification categories. Adding a category means
// extending this set and the ActionURL mapping together.
type Type string

const (
	TypeCourse       Type = "course"
	TypeAssignment   Type = "assignment"
	TypeGrade        Type = "grade"
	TypeLiveClass    Type = "live_class"
	TypePayment      Type = "payment"
	TypeMessage      Type = "message"
	TypeAnnouncement Type = "announcement"
	TypeSystem       Type = "system"
	TypeQuiz         Type = "quiz"
)

var AllTypes = []Type{
	TypeCourse,
	TypeAssignment,
	TypeGrade,
	TypeLiveClass,
	TypePayment,
	TypeMessage,
	TypeAnnouncement,
	TypeSystem,
	TypeQuiz,
}

func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DeliveryMethod is the channel a notification went out on.
type DeliveryMethod string

const (
	MethodInApp DeliveryMethod = "in_app"
	MethodEmail DeliveryMethod = "email"
	MethodPush  DeliveryMethod = "push"
	MethodSMS   DeliveryMethod = "sms"
)

// DeliveryStatus tracks a channel attempt's outcome.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

type (
	// Notification is the canonical in-app record; one recipient per row.
	Notification struct {
		ID        string                 `json:"id"`
		UserID    string                 `json:"user_id"`
		Type      Type                   `json:"type"`
		Title     string                 `json:"title"`
		Message   string                 `json:"message"`
		Data      map[string]interface{} `json:"data,omitempty"`
		IsRead    bool                   `json:"is_read"`
		CreatedAt time.Time              `json:"created_at"` // UTC
	}

	// Preferences holds one user's extra-channel opt-ins for one Type.
	// A missing row means in-app only.
	Preferences struct {
		UserID       string    `json:"user_id"`
		Type         Type      `json:"type"`
		EmailEnabled bool      `json:"email_enabled"`
		PushEnabled  bool      `json:"push_enabled"`
		SMSEnabled   bool      `json:"sms_enabled"`
		UpdatedAt    time.Time `json:"updated_at"` // UTC
	}

	// PushSubscription is a browser-held Web Push endpoint; a user may hold
	// several (multi-device).
	PushSubscription struct {
		ID        string    `json:"id"`
		UserID    string    `json:"user_id"`
		Endpoint  string    `json:"endpoint"`
		P256dh    string    `json:"p256dh"`
		Auth      string    `json:"auth"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	// Delivery is the per-channel tracking row; append-only.
	Delivery struct {
		ID             string         `json:"id"`
		NotificationID string         `json:"notification_id"`
		Method         DeliveryMethod `json:"delivery_method"`
		Status         DeliveryStatus `json:"status"`
		SentAt         time.Time      `json:"sent_at"`      // UTC
		DeliveredAt    time.Time      `json:"delivered_at"` // UTC; zero unless confirmed
	}

	DeliveryStats struct {
		Total     int `json:"total"`
		Pending   int `json:"pending"`
		Sent      int `json:"sent"`
		Delivered int `json:"delivered"`
		Failed    int `json:"failed"`
	}
)

// Valid reports whether the subscription carries the credentials the Web
// Push protocol needs.
func (s PushSubscription) Valid() bool {
	return s.Endpoint != "" && s.P256dh != "" && s.Auth != ""
}
