package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/darasa/shule/core/notification"
	"github.com/darasa/shule/core/user"
)

func deliver(t *testing.T, userID string, n notification.Notification) notification.Notification {
	t.Helper()
	if err := notifSvc.Deliver(context.Background(), userID, n); err != nil {
		t.Fatalf("deliver(): %v", err)
	}
	notifs, err := notifRepo.QueryUserNotifications(context.Background(), userID)
	if err != nil {
		t.Fatalf("deliver(): %v", err)
	}
	if len(notifs) == 0 {
		t.Fatal("deliver(): no notification recorded")
	}
	return notifs[0] // newest first
}

func Test_notificationApi_query(t *testing.T) {
	usr := createUser(t, "Notif Reader", "notifreader", "notif.reader@test.cd", "", []string{user.RoleStudent}, true)
	other := createUser(t, "Notif Other", "notifother", "notif.other@test.cd", "", []string{user.RoleStudent}, true)

	deliver(t, usr.ID, notification.Notification{Type: notification.TypeGrade, Title: "Graded", Message: "Your quiz was graded."})
	deliver(t, usr.ID, notification.Notification{Type: notification.TypeMessage, Title: "New message", Message: "You have mail."})

	req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", getToken(t, usr))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var notifs []notification.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &notifs); err != nil {
		t.Fatalf("unmarshalling notifications: %v", err)
	}
	if len(notifs) != 2 {
		t.Fatalf("notifications = %d; want 2", len(notifs))
	}
	// newest first
	if notifs[0].Title != "New message" || notifs[1].Title != "Graded" {
		t.Errorf("unexpected order: %q, %q", notifs[0].Title, notifs[1].Title)
	}
	for _, n := range notifs {
		if n.UserID != usr.ID {
			t.Errorf("leaked notification for user %q", n.UserID)
		}
	}

	// another user sees none of them
	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications", getToken(t, other))
	app.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusOK, wantData: []byte("[]")}
	checkCodeAndData(t, tt, rec)

	// anonymous is rejected
	req, rec = newRequest(http.MethodGet, "/v1/notifications")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
}

func Test_notificationApi_markRead(t *testing.T) {
	usr := createUser(t, "Mark Reader", "markreader", "mark.reader@test.cd", "", []string{user.RoleStudent}, true)
	other := createUser(t, "Mark Other", "markother", "mark.other@test.cd", "", []string{user.RoleStudent}, true)

	n := deliver(t, usr.ID, notification.Notification{Type: notification.TypeSystem, Title: "Maintenance", Message: "Planned downtime."})

	// someone else cannot mark it
	req, rec := newAuthRequest(http.MethodPut, "/v1/notifications/"+n.ID+"/read", getToken(t, other))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("other user: code = %v; want %v", rec.Code, http.StatusNotFound)
	}

	// the owner can
	req, rec = newAuthRequest(http.MethodPut, "/v1/notifications/"+n.ID+"/read", getToken(t, usr))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("owner: code = %v; want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	notifs, err := notifRepo.QueryUserNotifications(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("QueryUserNotifications(): %v", err)
	}
	if !notifs[0].IsRead {
		t.Error("notification not marked read")
	}

	// unknown id 404s
	req, rec = newAuthRequest(http.MethodPut, "/v1/notifications/nope/read", getToken(t, usr))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: code = %v; want %v", rec.Code, http.StatusNotFound)
	}
}

func Test_notificationApi_deliveries(t *testing.T) {
	admin := createUser(t, "Delivery Admin", "deliveryadmin", "delivery.admin@test.cd", "", []string{user.RoleAdmin}, true)
	usr := createUser(t, "Delivery User", "deliveryuser", "delivery.user@test.cd", "", []string{user.RoleStudent}, true)

	n := deliver(t, usr.ID, notification.Notification{Type: notification.TypeAnnouncement, Title: "Term dates", Message: "Term starts Monday."})

	// students may not inspect delivery tracking
	req, rec := newAuthRequest(http.MethodGet, "/v1/notifications/"+n.ID+"/deliveries", getToken(t, usr))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student: code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications/"+n.ID+"/deliveries", getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var ds []notification.Delivery
	if err := json.Unmarshal(rec.Body.Bytes(), &ds); err != nil {
		t.Fatalf("unmarshalling deliveries: %v", err)
	}
	if len(ds) != 1 {
		t.Fatalf("deliveries = %d; want 1", len(ds))
	}
	if ds[0].Method != notification.MethodInApp || ds[0].Status != notification.StatusDelivered {
		t.Errorf("unexpected delivery: %+v", ds[0])
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications/"+n.ID+"/deliveries/stats", getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var stats notification.DeliveryStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshalling stats: %v", err)
	}
	if stats.Total != 1 || stats.Delivered != 1 || stats.Failed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func Test_notificationApi_bulkSend(t *testing.T) {
	admin := createUser(t, "Bulk Admin", "bulkadmin", "bulk.admin@test.cd", "", []string{user.RoleAdmin}, true)
	u1 := createUser(t, "Bulk One", "bulkone", "bulk.one@test.cd", "", []string{user.RoleStudent}, true)
	u2 := createUser(t, "Bulk Two", "bulktwo", "bulk.two@test.cd", "", []string{user.RoleStudent}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name:     "student is forbidden",
			token:    getToken(t, u1),
			body:     marchallObj(t, map[string]interface{}{"user_ids": []string{u2.ID}, "type": "announcement", "title": "Hi", "message": "Yo"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "empty recipient list fails validation",
			token:    adminToken,
			body:     marchallObj(t, map[string]interface{}{"user_ids": []string{}, "type": "announcement", "title": "Hi", "message": "Yo"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown type fails validation",
			token:    adminToken,
			body:     marchallObj(t, map[string]interface{}{"user_ids": []string{u1.ID}, "type": "carrier_pigeon", "title": "Hi", "message": "Yo"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "admin fans out to all recipients",
			token:    adminToken,
			body:     marchallObj(t, map[string]interface{}{"user_ids": []string{u1.ID, u2.ID}, "type": "announcement", "title": "School closed", "message": "Snow day."}),
			wantCode: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/bulk", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	for _, recipient := range []user.User{u1, u2} {
		notifs, err := notifRepo.QueryUserNotifications(context.Background(), recipient.ID)
		if err != nil {
			t.Fatalf("QueryUserNotifications(): %v", err)
		}
		if len(notifs) != 1 {
			t.Fatalf("user %s: notifications = %d; want 1", recipient.Username, len(notifs))
		}
		if notifs[0].Title != "School closed" {
			t.Errorf("user %s: title = %q", recipient.Username, notifs[0].Title)
		}
	}
}

func Test_notificationApi_preferences(t *testing.T) {
	usr := createUser(t, "Pref User", "prefuser", "pref.user@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, usr)

	// defaults to in-app only
	req, rec := newAuthRequest(http.MethodGet, "/v1/notifications/preferences/grade", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var prefs notification.Preferences
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("unmarshalling preferences: %v", err)
	}
	if prefs.EmailEnabled || prefs.PushEnabled || prefs.SMSEnabled {
		t.Errorf("unexpected defaults: %+v", prefs)
	}

	// opt into email
	req, rec = newAuthRequest(http.MethodPut, "/v1/notifications/preferences/grade", token,
		marchallObj(t, map[string]bool{"email_enabled": true}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put: code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications/preferences/grade", token)
	app.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("unmarshalling preferences: %v", err)
	}
	if !prefs.EmailEnabled || prefs.PushEnabled || prefs.SMSEnabled {
		t.Errorf("preferences not persisted: %+v", prefs)
	}

	// the opt-in is scoped to one type
	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications/preferences/payment", token)
	app.ServeHTTP(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("unmarshalling preferences: %v", err)
	}
	if prefs.EmailEnabled {
		t.Error("email opt-in leaked to another type")
	}

	// an unknown type is rejected
	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications/preferences/carrier_pigeon", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type: code = %v; want %v", rec.Code, http.StatusBadRequest)
	}
}

func Test_notificationApi_pushSubscriptions(t *testing.T) {
	usr := createUser(t, "Push User", "pushuser", "push.user@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, usr)

	// endpoint must be a URL
	req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/push-subscriptions", token,
		marchallObj(t, map[string]string{"endpoint": "not-a-url", "p256dh": "key", "auth": "secret"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid endpoint: code = %v; want %v; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/notifications/push-subscriptions", token,
		marchallObj(t, map[string]string{"endpoint": "https://push.test.cd/sub/1", "p256dh": "key", "auth": "secret"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe: code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var sub notification.PushSubscription
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("unmarshalling subscription: %v", err)
	}
	if sub.UserID != usr.ID || sub.Endpoint != "https://push.test.cd/sub/1" {
		t.Errorf("unexpected subscription: %+v", sub)
	}

	subs, err := notifRepo.QueryPushSubscriptions(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("QueryPushSubscriptions(): %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("subscriptions = %d; want 1", len(subs))
	}

	req, rec = newAuthRequest(http.MethodDelete, "/v1/notifications/push-subscriptions", token,
		marchallObj(t, map[string]string{"endpoint": "https://push.test.cd/sub/1"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unsubscribe: code = %v; want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	subs, err = notifRepo.QueryPushSubscriptions(context.Background(), usr.ID)
	if err != nil {
		t.Fatalf("QueryPushSubscriptions(): %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("subscriptions = %d; want 0", len(subs))
	}
}
