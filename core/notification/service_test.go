package notification_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/notification"
	"github.com/darasa/shule/core/user"
	emailsvc "github.com/darasa/shule/services/email"
	dummydb "github.com/darasa/shule/storage/database/dummy"
)

var conf *core.Config

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

func TestMain(m *testing.M) {
	conf = core.NewConfig()
	conf.TestMode = true
	core.ParseEmailTemplates(conf, noopLogger{})
	os.Exit(m.Run())
}

type pushMock struct {
	mu   sync.Mutex
	sent []notification.PushSubscription
	errs map[string]error // by endpoint
}

func (m *pushMock) Send(_ context.Context, sub notification.PushSubscription, _ notification.PushPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[sub.Endpoint]; ok {
		return err
	}
	m.sent = append(m.sent, sub)
	return nil
}

type smsMock struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *smsMock) Send(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

type testEnv struct {
	svc     *notification.Service
	repo    notification.Repository
	usrRepo user.Repository
	push    *pushMock
	sms     *smsMock
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	emailsvc.ResetSentMessages()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := dummydb.NewNotificationRepository(db)
	usrRepo := dummydb.NewUserRepository(db)
	push := &pushMock{errs: make(map[string]error)}
	sms := &smsMock{}
	svc := notification.NewService(repo, usrRepo, emailsvc.NewConsoleServiceMock(conf), push, sms, noopLogger{}, conf)
	return &testEnv{svc: svc, repo: repo, usrRepo: usrRepo, push: push, sms: sms}
}

func createUser(t *testing.T, repo user.Repository, id, name, email, phone string) user.User {
	t.Helper()
	usr, err := repo.CreateUser(context.Background(), user.User{
		ID:          id,
		Name:        name,
		Email:       email,
		PhoneNumber: phone,
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func setPreferences(t *testing.T, repo notification.Repository, userID string, typ notification.Type, email, push, sms bool) {
	t.Helper()
	_, err := repo.UpsertPreferences(context.Background(), notification.Preferences{
		UserID:       userID,
		Type:         typ,
		EmailEnabled: email,
		PushEnabled:  push,
		SMSEnabled:   sms,
	})
	if err != nil {
		t.Fatalf("setPreferences() failed: %v", err)
	}
}

func deliveriesByMethod(t *testing.T, env *testEnv, userID string) map[notification.DeliveryMethod]notification.Delivery {
	t.Helper()
	ctx := context.Background()
	notifs, err := env.repo.QueryUserNotifications(ctx, userID)
	if err != nil {
		t.Fatalf("QueryUserNotifications() failed: %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifs))
	}
	ds, err := env.repo.QueryDeliveries(ctx, notifs[0].ID)
	if err != nil {
		t.Fatalf("QueryDeliveries() failed: %v", err)
	}
	byMethod := make(map[notification.DeliveryMethod]notification.Delivery, len(ds))
	for _, d := range ds {
		byMethod[d.Method] = d
	}
	return byMethod
}

func Test_Deliver_defaultsToInAppOnly(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "amani@test.cd", "+243999000001")

	err := env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:    notification.TypeSystem,
		Title:   "Maintenance tonight",
		Message: "The platform will be down for 10 minutes.",
	})
	assert.NoError(t, err)

	byMethod := deliveriesByMethod(t, env, usr.ID)
	assert.Len(t, byMethod, 1)
	assert.Equal(t, notification.StatusDelivered, byMethod[notification.MethodInApp].Status)
	assert.False(t, byMethod[notification.MethodInApp].DeliveredAt.IsZero())
	assert.Empty(t, emailsvc.SentMessages)
	assert.Empty(t, env.push.sent)
	assert.Empty(t, env.sms.sent)
}

func Test_Deliver_emailEnabled(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "amani@test.cd", "")
	setPreferences(t, env.repo, usr.ID, notification.TypeGrade, true, false, false)

	err := env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:    notification.TypeGrade,
		Title:   "New grade posted",
		Message: "Your Algebra II quiz has been graded.",
	})
	assert.NoError(t, err)

	byMethod := deliveriesByMethod(t, env, usr.ID)
	assert.Len(t, byMethod, 2)
	assert.Equal(t, notification.StatusDelivered, byMethod[notification.MethodInApp].Status)
	assert.Equal(t, notification.StatusSent, byMethod[notification.MethodEmail].Status)

	if assert.Len(t, emailsvc.SentMessages, 1) {
		msg := emailsvc.SentMessages[0]
		assert.Equal(t, "New grade posted", msg.Subject)
		assert.Equal(t, usr.Email, msg.To[0].Address)
		assert.Contains(t, msg.TextContent, "Your Algebra II quiz has been graded.")
		assert.Contains(t, msg.TextContent, conf.FrontendBaseURL+"/grades")
	}
}

func Test_Deliver_emailSkippedWithoutAddress(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "", "")
	setPreferences(t, env.repo, usr.ID, notification.TypeGrade, true, false, false)

	err := env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:  notification.TypeGrade,
		Title: "New grade posted",
	})
	assert.NoError(t, err)

	// no address: the channel is skipped without a tracking row
	byMethod := deliveriesByMethod(t, env, usr.ID)
	assert.Len(t, byMethod, 1)
	assert.Empty(t, emailsvc.SentMessages)
}

type failingNotificationRepo struct {
	notification.Repository
	failUserID string
}

func (r failingNotificationRepo) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if r.failUserID == "" || n.UserID == r.failUserID {
		return notification.Notification{}, errors.New("insert failed")
	}
	return r.Repository.CreateNotification(ctx, n)
}

func Test_Deliver_inAppFailureAborts(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "amani@test.cd", "")
	setPreferences(t, env.repo, usr.ID, notification.TypeGrade, true, true, false)

	repo := failingNotificationRepo{Repository: env.repo}
	svc := notification.NewService(repo, env.usrRepo, emailsvc.NewConsoleServiceMock(conf), env.push, env.sms, noopLogger{}, conf)

	err := svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:  notification.TypeGrade,
		Title: "New grade posted",
	})
	assert.Error(t, err)

	// the canonical write failed: nothing else may go out
	notifs, err := env.repo.QueryUserNotifications(ctx, usr.ID)
	assert.NoError(t, err)
	assert.Empty(t, notifs)
	assert.Empty(t, emailsvc.SentMessages)
	assert.Empty(t, env.push.sent)
}

func Test_Deliver_pushDeletesGoneSubscriptions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "", "")
	setPreferences(t, env.repo, usr.ID, notification.TypeCourse, false, true, false)

	stale, err := env.repo.SavePushSubscription(ctx, notification.PushSubscription{
		ID: "sub-stale", UserID: usr.ID, Endpoint: "https://push.test/stale", P256dh: "p", Auth: "a",
	})
	assert.NoError(t, err)
	fresh, err := env.repo.SavePushSubscription(ctx, notification.PushSubscription{
		ID: "sub-fresh", UserID: usr.ID, Endpoint: "https://push.test/fresh", P256dh: "p", Auth: "a",
	})
	assert.NoError(t, err)
	env.push.errs[stale.Endpoint] = notification.ErrSubscriptionGone

	err = env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:  notification.TypeCourse,
		Title: "New course assignment",
		Data:  map[string]interface{}{"courseId": "crs-1"},
	})
	assert.NoError(t, err)

	// one device took it: the attempt counts as sent
	byMethod := deliveriesByMethod(t, env, usr.ID)
	assert.Equal(t, notification.StatusSent, byMethod[notification.MethodPush].Status)

	// the gone subscription is dropped, the live one stays
	subs, err := env.repo.QueryPushSubscriptions(ctx, usr.ID)
	assert.NoError(t, err)
	if assert.Len(t, subs, 1) {
		assert.Equal(t, fresh.ID, subs[0].ID)
	}
	if assert.Len(t, env.push.sent, 1) {
		assert.Equal(t, fresh.Endpoint, env.push.sent[0].Endpoint)
	}
}

func Test_Deliver_pushAllDevicesFailed(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "", "")
	setPreferences(t, env.repo, usr.ID, notification.TypeCourse, false, true, false)

	sub, err := env.repo.SavePushSubscription(ctx, notification.PushSubscription{
		ID: "sub-1", UserID: usr.ID, Endpoint: "https://push.test/1", P256dh: "p", Auth: "a",
	})
	assert.NoError(t, err)
	env.push.errs[sub.Endpoint] = errors.New("provider unavailable")

	err = env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:  notification.TypeCourse,
		Title: "New course assignment",
	})
	assert.NoError(t, err)

	byMethod := deliveriesByMethod(t, env, usr.ID)
	assert.Equal(t, notification.StatusFailed, byMethod[notification.MethodPush].Status)

	// a transient failure does not delete the subscription
	subs, err := env.repo.QueryPushSubscriptions(ctx, usr.ID)
	assert.NoError(t, err)
	assert.Len(t, subs, 1)
}

func Test_Deliver_pushWithoutSubscriptions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "", "")
	setPreferences(t, env.repo, usr.ID, notification.TypeCourse, false, true, false)

	err := env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:  notification.TypeCourse,
		Title: "New course assignment",
	})
	assert.NoError(t, err)

	// nothing to push to: no tracking row either
	byMethod := deliveriesByMethod(t, env, usr.ID)
	assert.Len(t, byMethod, 1)
	assert.NotContains(t, byMethod, notification.MethodPush)
}

func Test_Deliver_smsUnsupported(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "", "+243999000001")
	setPreferences(t, env.repo, usr.ID, notification.TypePayment, false, false, true)
	env.sms.err = notification.ErrSMSUnsupported

	err := env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:    notification.TypePayment,
		Title:   "Payment received",
		Message: "Thank you for your payment.",
	})
	assert.NoError(t, err)

	// an unconfigured transport yields a failed row, never a fake success
	byMethod := deliveriesByMethod(t, env, usr.ID)
	assert.Equal(t, notification.StatusFailed, byMethod[notification.MethodSMS].Status)
	assert.Equal(t, notification.StatusDelivered, byMethod[notification.MethodInApp].Status)
}

func Test_Deliver_smsSent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "", "+243999000001")
	setPreferences(t, env.repo, usr.ID, notification.TypePayment, false, false, true)

	err := env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:    notification.TypePayment,
		Title:   "Payment received",
		Message: "Thank you for your payment.",
	})
	assert.NoError(t, err)

	byMethod := deliveriesByMethod(t, env, usr.ID)
	assert.Equal(t, notification.StatusSent, byMethod[notification.MethodSMS].Status)
	if assert.Len(t, env.sms.sent, 1) {
		assert.Equal(t, usr.PhoneNumber, env.sms.sent[0])
	}
}

func Test_Deliver_channelIsolation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "amani@test.cd", "+243999000001")
	setPreferences(t, env.repo, usr.ID, notification.TypeCourse, true, true, true)

	sub, err := env.repo.SavePushSubscription(ctx, notification.PushSubscription{
		ID: "sub-1", UserID: usr.ID, Endpoint: "https://push.test/1", P256dh: "p", Auth: "a",
	})
	assert.NoError(t, err)
	env.push.errs[sub.Endpoint] = errors.New("provider unavailable")
	env.sms.err = errors.New("carrier rejected")

	err = env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:    notification.TypeCourse,
		Title:   "New course assignment",
		Message: "You have been assigned to Algebra II.",
	})
	assert.NoError(t, err)

	// push and sms both failed; the in-app row and the email still went through
	byMethod := deliveriesByMethod(t, env, usr.ID)
	assert.Len(t, byMethod, 4)
	assert.Equal(t, notification.StatusDelivered, byMethod[notification.MethodInApp].Status)
	assert.Equal(t, notification.StatusSent, byMethod[notification.MethodEmail].Status)
	assert.Equal(t, notification.StatusFailed, byMethod[notification.MethodPush].Status)
	assert.Equal(t, notification.StatusFailed, byMethod[notification.MethodSMS].Status)
	assert.Len(t, emailsvc.SentMessages, 1)
}

func Test_BulkDeliver_failureIsolation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	// usr2 opted into email but cannot be resolved: only their email is lost
	usr1 := createUser(t, env.usrRepo, "usr-1", "Amani", "amani@test.cd", "")
	usr3 := createUser(t, env.usrRepo, "usr-3", "Zawadi", "zawadi@test.cd", "")
	userIDs := []string{usr1.ID, "usr-2", usr3.ID}
	for _, userID := range userIDs {
		setPreferences(t, env.repo, userID, notification.TypeAnnouncement, true, false, false)
	}

	env.svc.BulkDeliver(ctx, userIDs, notification.Notification{
		Type:    notification.TypeAnnouncement,
		Title:   "School reopens Monday",
		Message: "Classes resume at 08:00.",
	})

	// every recipient gets their own in-app copy
	ids := make(map[string]bool)
	for _, userID := range userIDs {
		notifs, err := env.repo.QueryUserNotifications(ctx, userID)
		assert.NoError(t, err)
		if assert.Len(t, notifs, 1, "user %s", userID) {
			assert.Equal(t, userID, notifs[0].UserID)
			assert.False(t, ids[notifs[0].ID], "notification IDs must be distinct")
			ids[notifs[0].ID] = true
		}
	}
	assert.Len(t, emailsvc.SentMessages, 2)
}

func Test_GetPreferences_missingRowDefaults(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	prefs, err := env.svc.GetPreferences(ctx, "usr-1", notification.TypeQuiz)
	assert.NoError(t, err)
	assert.Equal(t, notification.Preferences{UserID: "usr-1", Type: notification.TypeQuiz}, prefs)
}

func Test_UpdatePreferences_roundTrip(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	saved, err := env.svc.UpdatePreferences(ctx, notification.Preferences{
		UserID:       "usr-1",
		Type:         notification.TypeQuiz,
		EmailEnabled: true,
		PushEnabled:  true,
	})
	assert.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())

	got, err := env.svc.GetPreferences(ctx, "usr-1", notification.TypeQuiz)
	assert.NoError(t, err)
	assert.True(t, got.EmailEnabled)
	assert.True(t, got.PushEnabled)
	assert.False(t, got.SMSEnabled)
}

func Test_Subscribe(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	_, err := env.svc.Subscribe(ctx, "usr-1", notification.PushSubscription{Endpoint: "https://push.test/1"})
	assert.Error(t, err)
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))

	sub, err := env.svc.Subscribe(ctx, "usr-1", notification.PushSubscription{
		Endpoint: "https://push.test/1", P256dh: "p", Auth: "a",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, "usr-1", sub.UserID)

	assert.NoError(t, env.svc.Unsubscribe(ctx, "usr-1", sub.Endpoint))
	subs, err := env.repo.QueryPushSubscriptions(ctx, "usr-1")
	assert.NoError(t, err)
	assert.Empty(t, subs)
}

func Test_MarkRead(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	usr := createUser(t, env.usrRepo, "usr-1", "Amani", "", "")

	err := env.svc.Deliver(ctx, usr.ID, notification.Notification{
		Type:  notification.TypeMessage,
		Title: "New message",
	})
	assert.NoError(t, err)
	notifs, err := env.svc.QueryForUser(ctx, usr.ID)
	assert.NoError(t, err)
	assert.Len(t, notifs, 1)
	assert.False(t, notifs[0].IsRead)

	// another user cannot mark it
	assert.Equal(t, notification.ErrNotFound, env.svc.MarkRead(ctx, notifs[0].ID, "usr-2"))

	assert.NoError(t, env.svc.MarkRead(ctx, notifs[0].ID, usr.ID))
	notifs, err = env.svc.QueryForUser(ctx, usr.ID)
	assert.NoError(t, err)
	assert.True(t, notifs[0].IsRead)
}
