package service

import (
	"context"
	"testing"
	"time"

	"courier-dispatch/internal/domain/order"
	"courier-dispatch/internal/domain/presence"
	"courier-dispatch/internal/domain/protocol"
	"courier-dispatch/internal/general/contracts"
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

type fakeOrderRepo struct {
	orders map[string]*order.Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*order.Order)}
}

func (r *fakeOrderRepo) put(o *order.Order) *order.Order {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	cp := *o
	r.orders[o.ID] = &cp
	return o
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *order.Order) error {
	r.put(o)
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, protocol.NotFoundf("order %s not found", id)
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) Save(ctx context.Context, o *order.Order) error {
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) ListByStatus(ctx context.Context, status order.Status, limit int) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range r.orders {
		if o.Status == status && len(out) < limit {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) CountUnseen(ctx context.Context, status order.Status) (int, error) {
	n := 0
	for _, o := range r.orders {
		if o.Status == status && !o.SeenByAdmin {
			n++
		}
	}
	return n, nil
}

func (r *fakeOrderRepo) MarkBucketSeen(ctx context.Context, status order.Status) (int, error) {
	n := 0
	for _, o := range r.orders {
		if o.Status == status && !o.SeenByAdmin {
			o.SeenByAdmin = true
			n++
		}
	}
	return n, nil
}

func (r *fakeOrderRepo) CountByStatusBetween(ctx context.Context, status order.Status, start, end time.Time) (int, error) {
	return 0, nil
}

func (r *fakeOrderRepo) SumDeliveredTotalBetween(ctx context.Context, start, end time.Time) (float64, error) {
	return 0, nil
}

type fakePresenceRepo struct {
	drivers map[string]*presence.DriverPresence
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{drivers: make(map[string]*presence.DriverPresence)}
}

func (r *fakePresenceRepo) seed(driverID string, state presence.State) {
	r.drivers[driverID] = &presence.DriverPresence{
		DriverID: driverID, State: state, AvailablePref: true,
	}
}

func (r *fakePresenceRepo) GetForUpdate(ctx context.Context, driverID string) (*presence.DriverPresence, error) {
	p, ok := r.drivers[driverID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePresenceRepo) Upsert(ctx context.Context, p *presence.DriverPresence) error {
	cp := *p
	r.drivers[p.DriverID] = &cp
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
	svc  ports.DispatchService
	repo *fakeOrderRepo
	pres *fakePresenceRepo
	pub  *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeOrderRepo()
	pres := newFakePresenceRepo()
	pub := &fakePublisher{}
	svc := NewDispatchService(logger.New("dispatch-test"), fakeUOW{}, repo, pres, pub)
	return &fixture{svc: svc, repo: repo, pres: pres, pub: pub}
}

func (f *fixture) seedOrder(t *testing.T, mutate func(*order.Order)) *order.Order {
	t.Helper()
	o, err := order.New("ORD-1", "client-1", []order.LineItem{{ProductID: "p", Name: "Pizza", Quantity: 1, Price: 12}})
	require.NoError(t, err)
	if mutate != nil {
		mutate(o)
	}
	return f.repo.put(o)
}

func (f *fixture) lastPublished(t *testing.T) publishedMessage {
	t.Helper()
	require.NotEmpty(t, f.pub.published)
	return f.pub.published[len(f.pub.published)-1]
}

// ----- tests -----

func TestCreateOrderPublishesStatus(t *testing.T) {
	f := newFixture(t)

	o, err := order.New("ORD-99", "client-1", nil)
	require.NoError(t, err)
	created, err := f.svc.CreateOrder(context.Background(), o)
	require.NoError(t, err)

	msg := f.lastPublished(t)
	assert.Equal(t, contracts.ExchangeOrderTopic, msg.exchange)
	assert.Equal(t, contracts.RouteOrderStatusPrefix+"PENDING", msg.routingKey)

	status, ok := msg.body.(contracts.OrderStatusMessage)
	require.True(t, ok)
	assert.Equal(t, created.ID, status.OrderID)
	assert.Equal(t, "PENDING", status.Status)
}

func TestAssignOrder(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, nil)
	f.pres.seed("driver-1", presence.StateAvailable)

	assigned, err := f.svc.AssignOrder(context.Background(), ports.AssignOrderInput{
		OrderID: o.ID, DriverID: "driver-1", AdminID: "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusInProgress, assigned.Status)

	msg := f.lastPublished(t)
	assert.Equal(t, contracts.RouteOrderStatusPrefix+"IN_PROGRESS", msg.routingKey)

	// the presence row flips in the same transaction as the order
	booked, err := f.pres.GetForUpdate(context.Background(), "driver-1")
	require.NoError(t, err)
	assert.Equal(t, presence.StateOrderActive, booked.State)
}

func TestAssignOrderRejectsDoubleBooking(t *testing.T) {
	f := newFixture(t)
	first := f.seedOrder(t, nil)
	second := f.seedOrder(t, nil)
	f.pres.seed("driver-1", presence.StateAvailable)

	_, err := f.svc.AssignOrder(context.Background(), ports.AssignOrderInput{
		OrderID: first.ID, DriverID: "driver-1", AdminID: "admin-1",
	})
	require.NoError(t, err)
	published := len(f.pub.published)

	// no consumer has run yet; the committed presence flip alone must
	// refuse a second assignment to the same driver
	_, err = f.svc.AssignOrder(context.Background(), ports.AssignOrderInput{
		OrderID: second.ID, DriverID: "driver-1", AdminID: "admin-1",
	})
	assert.Equal(t, protocol.KindConflict, protocol.KindOf(err))

	kept, err := f.repo.GetByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, kept.Status)
	assert.Len(t, f.pub.published, published)
}

func TestAssignOrderConflictWhenAlreadyAssigned(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, func(o *order.Order) {
		require.NoError(t, o.Assign("driver-1"))
	})
	f.pres.seed("driver-2", presence.StateAvailable)

	_, err := f.svc.AssignOrder(context.Background(), ports.AssignOrderInput{
		OrderID: o.ID, DriverID: "driver-2", AdminID: "admin-1",
	})
	assert.Equal(t, protocol.KindConflict, protocol.KindOf(err))
}

func TestAssignOrderDriverNotDispatchable(t *testing.T) {
	states := map[string]presence.State{
		"disconnected": "",
		"unavailable":  presence.StateUnavailable,
		"order_active": presence.StateOrderActive,
	}
	for name, state := range states {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			o := f.seedOrder(t, nil)
			if state != "" {
				f.pres.seed("driver-1", state)
			}

			_, err := f.svc.AssignOrder(context.Background(), ports.AssignOrderInput{
				OrderID: o.ID, DriverID: "driver-1", AdminID: "admin-1",
			})
			assert.Equal(t, protocol.KindConflict, protocol.KindOf(err))

			kept, err := f.repo.GetByID(context.Background(), o.ID)
			require.NoError(t, err)
			assert.Equal(t, order.StatusPending, kept.Status)
			assert.Empty(t, f.pub.published)
		})
	}
}

func TestAssignOrderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AssignOrder(context.Background(), ports.AssignOrderInput{
		OrderID: "missing", DriverID: "driver-1",
	})
	assert.Equal(t, protocol.KindNotFound, protocol.KindOf(err))
}

func TestApplyIntentDeliver(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, func(o *order.Order) {
		require.NoError(t, o.Assign("driver-1"))
	})
	f.pub.published = nil

	delivered, err := f.svc.ApplyIntent(context.Background(), ports.OrderIntentInput{
		Action: contracts.IntentDeliver, OrderID: o.ID, DriverID: "driver-1", Comment: "left at door",
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, delivered.Status)

	msg := f.lastPublished(t)
	assert.Equal(t, contracts.RouteOrderStatusPrefix+"DELIVERED", msg.routingKey)
	status := msg.body.(contracts.OrderStatusMessage)
	assert.Equal(t, "driver-1", status.DriverID)
	assert.Equal(t, "IN_PROGRESS", status.PrevStatus)
}

func TestApplyIntentWrongDriver(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, func(o *order.Order) {
		require.NoError(t, o.Assign("driver-1"))
	})

	_, err := f.svc.ApplyIntent(context.Background(), ports.OrderIntentInput{
		Action: contracts.IntentDeliver, OrderID: o.ID, DriverID: "driver-2",
	})
	assert.Equal(t, protocol.KindConflict, protocol.KindOf(err))
}

func TestApplyIntentTerminalReplaySameTarget(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, func(o *order.Order) {
		require.NoError(t, o.Assign("driver-1"))
		require.NoError(t, o.Deliver(""))
	})
	f.pub.published = nil

	// the duplicate succeeds without a second broadcast
	replayed, err := f.svc.ApplyIntent(context.Background(), ports.OrderIntentInput{
		Action: contracts.IntentDeliver, OrderID: o.ID, DriverID: "driver-1",
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, replayed.Status)
	assert.Empty(t, f.pub.published)
}

func TestApplyIntentTerminalReplayDifferentTarget(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, func(o *order.Order) {
		require.NoError(t, o.Assign("driver-1"))
		require.NoError(t, o.Deliver(""))
	})

	_, err := f.svc.ApplyIntent(context.Background(), ports.OrderIntentInput{
		Action: contracts.IntentCancel, OrderID: o.ID, DriverID: "driver-1",
		Reason: "r", Comment: "c",
	})
	assert.Equal(t, protocol.KindConflict, protocol.KindOf(err))
}

func TestApplyIntentCancelValidation(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, func(o *order.Order) {
		require.NoError(t, o.Assign("driver-1"))
	})

	_, err := f.svc.ApplyIntent(context.Background(), ports.OrderIntentInput{
		Action: contracts.IntentCancel, OrderID: o.ID, DriverID: "driver-1", Comment: "c",
	})
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))

	_, err = f.svc.ApplyIntent(context.Background(), ports.OrderIntentInput{
		Action: contracts.IntentCancel, OrderID: o.ID, DriverID: "driver-1", Reason: "r",
	})
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
}

func TestApplyIntentRedistributeCarriesReleasedDriver(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, func(o *order.Order) {
		require.NoError(t, o.Assign("driver-1"))
	})
	f.pub.published = nil

	back, err := f.svc.ApplyIntent(context.Background(), ports.OrderIntentInput{
		Action: contracts.IntentRedistribute, OrderID: o.ID, DriverID: "driver-1",
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, back.Status)
	assert.Nil(t, back.DriverID)

	// the status message still names the driver the order was taken from
	msg := f.lastPublished(t)
	status := msg.body.(contracts.OrderStatusMessage)
	assert.Equal(t, "driver-1", status.DriverID)
	assert.Equal(t, "PENDING", status.Status)
	assert.Equal(t, "IN_PROGRESS", status.PrevStatus)
}

func TestApplyIntentUnknownAction(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ApplyIntent(context.Background(), ports.OrderIntentInput{
		Action: "teleport", OrderID: "any", DriverID: "driver-1",
	})
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
}

func TestClassifyReplaySameTag(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, func(o *order.Order) {
		require.NoError(t, o.Classify(order.StatusSpammed))
	})
	f.pub.published = nil

	got, err := f.svc.Classify(context.Background(), o.ID, order.StatusSpammed, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusSpammed, got.Status)
	assert.Empty(t, f.pub.published)
}

func TestClassifyNonPending(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, func(o *order.Order) {
		require.NoError(t, o.Assign("driver-1"))
	})

	_, err := f.svc.Classify(context.Background(), o.ID, order.StatusTest, "admin-1")
	assert.Equal(t, protocol.KindConflict, protocol.KindOf(err))
}

func TestListBucket(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, nil)

	view, err := f.svc.ListBucket(context.Background(), order.StatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, view.Orders, 1)
	assert.Equal(t, 1, view.Unseen)

	_, err = f.svc.ListBucket(context.Background(), order.Status("BOGUS"), 10)
	assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
}

func TestMarkBucketSeen(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, nil)

	n, err := f.svc.MarkBucketSeen(context.Background(), order.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.MarkBucketSeen(context.Background(), order.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
