package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"courier-dispatch/internal/domain/notify"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/domain/user"
	"courier-dispatch/internal/general/contracts"
	"courier-dispatch/internal/general/jwt"
	"courier-dispatch/internal/general/logger"
	"courier-dispatch/internal/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----- fakes -----

type fakeUOW struct{}

func (fakeUOW) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeUserRepo struct {
	byUsername map[string]*user.User
}

func (r *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	r.byUsername[u.Username] = u
	return nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.byUsername[username], nil
}

type fakeTokenRepo struct {
	tokens map[string]*notify.PushToken // user id -> active token
}

func (r *fakeTokenRepo) Upsert(ctx context.Context, t *notify.PushToken) error {
	r.tokens[t.UserID] = t
	return nil
}

func (r *fakeTokenRepo) GetActiveForUser(ctx context.Context, userID string) (*notify.PushToken, error) {
	return r.tokens[userID], nil
}

func (r *fakeTokenRepo) DeactivateStaleBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	for id, t := range r.tokens {
		if t.UpdatedAt.Before(cutoff) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}

type fakeNotificationRepo struct {
	created    []*notify.Notification
	deliveries [][]notify.Delivery
}

func (r *fakeNotificationRepo) CreateWithDeliveries(ctx context.Context, n *notify.Notification, ds []notify.Delivery) error {
	r.created = append(r.created, n)
	r.deliveries = append(r.deliveries, ds)
	return nil
}

func (r *fakeNotificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]notify.Notification, error) {
	var out []notify.Notification
	for _, n := range r.created {
		out = append(out, *n)
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, notificationID, userID string) error {
	return nil
}

func (r *fakeNotificationRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

type fakePushProvider struct {
	pushed []string // tokens
	fail   bool
}

func (p *fakePushProvider) Push(ctx context.Context, token, title, body string) error {
	if p.fail {
		return errors.New("relay unreachable")
	}
	p.pushed = append(p.pushed, token)
	return nil
}

type publishedMessage struct {
	exchange   string
	routingKey string
	body       any
}

type fakePublisher struct {
	published []publishedMessage
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body any) error {
	p.published = append(p.published, publishedMessage{exchange, routingKey, body})
	return nil
}

// ----- fixtures -----

type fixture struct {
	svc    ports.AdminService
	users  *fakeUserRepo
	tokens *fakeTokenRepo
	notes  *fakeNotificationRepo
	push   *fakePushProvider
	pub    *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:  &fakeUserRepo{byUsername: make(map[string]*user.User)},
		tokens: &fakeTokenRepo{tokens: make(map[string]*notify.PushToken)},
		notes:  &fakeNotificationRepo{},
		push:   &fakePushProvider{},
		pub:    &fakePublisher{},
	}
	f.svc = NewAdminService(
		logger.New("admin-test"), fakeUOW{}, f.users, f.tokens, f.notes,
		nil, nil, f.pub, f.push,
		jwt.NewManager("test-secret", time.Hour),
	)
	return f
}

func (f *fixture) seedAdmin(t *testing.T, username, password string) *user.User {
	t.Helper()
	u, err := user.New(username, password, user.RoleAdmin)
	require.NoError(t, err)
	u.ID = uuid.NewString()
	f.users.byUsername[username] = u
	return u
}

// ----- tests -----

func TestLogin(t *testing.T) {
	f := newFixture(t)
	u := f.seedAdmin(t, "ops", "hunter2")

	token, err := f.svc.Login(context.Background(), "ops", "hunter2", "device-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, claims, err := jwt.NewManager("test-secret", time.Hour).ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, user.RoleAdmin, claims.Role)
	assert.Equal(t, "device-1", claims.DeviceID)
}

func TestLoginBadCredentialsAreUniform(t *testing.T) {
	f := newFixture(t)
	f.seedAdmin(t, "ops", "hunter2")

	_, unknownUser := f.svc.Login(context.Background(), "nobody", "hunter2", "d")
	_, wrongPassword := f.svc.Login(context.Background(), "ops", "wrong", "d")

	require.Error(t, unknownUser)
	require.Error(t, wrongPassword)
	// both failures read identically to the caller
	assert.Equal(t, unknownUser.Error(), wrongPassword.Error())
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(wrongPassword))
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newFixture(t)
	u := f.seedAdmin(t, "ops", "hunter2")
	u.Active = false

	_, err := f.svc.Login(context.Background(), "ops", "hunter2", "d")
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
}

func TestSendNotificationDeliveryStatuses(t *testing.T) {
	f := newFixture(t)
	withToken, err := notify.NewPushToken("user-1", "dev-1", "expo-token-1", "ios")
	require.NoError(t, err)
	f.tokens.tokens["user-1"] = withToken

	res, err := f.svc.SendNotification(context.Background(), ports.SendNotificationInput{
		Title: "Maintenance", Message: "Deploys at 02:00", CreatedBy: "admin-1",
		Recipients: []string{"user-1", "user-2"},
	})
	require.NoError(t, err)
	require.Len(t, res.Deliveries, 2)

	byUser := map[string]notify.PushStatus{}
	for _, d := range res.Deliveries {
		byUser[d.UserID] = d.PushStatus
	}
	assert.Equal(t, notify.PushSent, byUser["user-1"])
	assert.Equal(t, notify.PushSkippedNoToken, byUser["user-2"])
	assert.Equal(t, []string{"expo-token-1"}, f.push.pushed)

	// the broadcast row persisted and the fan-out event went to the broker
	require.Len(t, f.notes.created, 1)
	require.Len(t, f.pub.published, 1)
	assert.Equal(t, contracts.ExchangeNotifyFanout, f.pub.published[0].exchange)
	assert.Equal(t, contracts.RouteNotificationCreated, f.pub.published[0].routingKey)
}

func TestSendNotificationPushFailureIsRecordedNotFatal(t *testing.T) {
	f := newFixture(t)
	f.push.fail = true
	tok, err := notify.NewPushToken("user-1", "dev-1", "expo-token-1", "android")
	require.NoError(t, err)
	f.tokens.tokens["user-1"] = tok

	res, err := f.svc.SendNotification(context.Background(), ports.SendNotificationInput{
		Title: "t", Message: "m", CreatedBy: "admin-1", Recipients: []string{"user-1"},
	})
	require.NoError(t, err)
	require.Len(t, res.Deliveries, 1)
	assert.Equal(t, notify.PushFailed, res.Deliveries[0].PushStatus)
	assert.NotEmpty(t, res.Deliveries[0].PushError)
}

func TestSendNotificationValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendNotification(context.Background(), ports.SendNotificationInput{
		Title: "", Message: "m", Recipients: []string{"u"},
	})
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))

	_, err = f.svc.SendNotification(context.Background(), ports.SendNotificationInput{
		Title: "t", Message: "m", Recipients: nil,
	})
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
}

func TestRegisterPushToken(t *testing.T) {
	f := newFixture(t)
	tok, err := notify.NewPushToken("user-1", "dev-1", "expo-token-1", "IOS")
	require.NoError(t, err)

	require.NoError(t, f.svc.RegisterPushToken(context.Background(), tok))
	stored := f.tokens.tokens["user-1"]
	require.NotNil(t, stored)
	assert.Equal(t, "ios", stored.Platform)
	assert.True(t, stored.Active)
}
