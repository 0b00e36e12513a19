package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("ORD-1001", "client-1", []LineItem{
		{ProductID: "p1", Name: "Pizza", Quantity: 2, Price: 10.50},
		{ProductID: "p2", Name: "Cola", Quantity: 1, Price: 2.00, IsFree: true},
	})
	require.NoError(t, err)
	return o
}

func TestNew(t *testing.T) {
	o := newTestOrder(t)

	assert.Equal(t, StatusPending, o.Status)
	assert.False(t, o.SeenByAdmin)
	assert.Nil(t, o.DriverID)
	assert.Equal(t, 21.00, o.Total)
}

func TestNewValidation(t *testing.T) {
	_, err := New("", "client-1", nil)
	assert.ErrorIs(t, err, ErrNumberRequired)

	_, err = New("ORD-1", "  ", nil)
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestSumTotalFreeItems(t *testing.T) {
	items := []LineItem{
		{Price: 5, Quantity: 3},
		{Price: 100, Quantity: 1, IsFree: true},
		{Price: 4}, // zero quantity counts as one
	}
	assert.Equal(t, 19.0, SumTotal(items))
}

func TestAssign(t *testing.T) {
	o := newTestOrder(t)

	require.NoError(t, o.Assign("driver-1"))
	assert.Equal(t, StatusInProgress, o.Status)
	require.NotNil(t, o.DriverID)
	assert.Equal(t, "driver-1", *o.DriverID)
	assert.NotNil(t, o.AssignedAt)
	assert.False(t, o.SeenByAdmin)
}

func TestAssignAlreadyAssigned(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Assign("driver-1"))

	assert.ErrorIs(t, o.Assign("driver-2"), ErrAlreadyAssigned)
}

func TestAssignRequiresDriver(t *testing.T) {
	o := newTestOrder(t)
	assert.ErrorIs(t, o.Assign("  "), ErrDriverRequired)
}

func TestDeliver(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Assign("driver-1"))

	require.NoError(t, o.Deliver("left at the door"))
	assert.Equal(t, StatusDelivered, o.Status)
	require.NotNil(t, o.DeliveryComment)
	assert.Equal(t, "left at the door", *o.DeliveryComment)
}

func TestDeliverWithoutDriver(t *testing.T) {
	o := newTestOrder(t)
	assert.ErrorIs(t, o.Deliver(""), ErrNoDriverAssigned)
}

func TestCancelRequiresReasonAndComment(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Assign("driver-1"))

	assert.ErrorIs(t, o.Cancel("", "some comment"), ErrReasonRequired)
	assert.ErrorIs(t, o.Cancel("client_unreachable", "  "), ErrCommentRequired)

	// still in progress after the rejected attempts
	assert.Equal(t, StatusInProgress, o.Status)

	require.NoError(t, o.Cancel("client_unreachable", "no answer after three calls"))
	assert.Equal(t, StatusCancelled, o.Status)
}

func TestRedistributeClearsDriver(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Assign("driver-1"))

	require.NoError(t, o.Redistribute())
	assert.Equal(t, StatusPending, o.Status)
	assert.Nil(t, o.DriverID)
	assert.Nil(t, o.AssignedAt)
	assert.NotNil(t, o.RedistributedAt)
}

func TestRedistributeRequiresNoReason(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Assign("driver-1"))
	assert.NoError(t, o.Redistribute())
}

func TestClassify(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Classify(StatusSpammed))
	assert.Equal(t, StatusSpammed, o.Status)
}

func TestClassifyOnlyPending(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Assign("driver-1"))

	assert.ErrorIs(t, o.Classify(StatusTest), ErrNotClassifiable)
}

func TestClassifyRejectsLifecycleStatuses(t *testing.T) {
	o := newTestOrder(t)
	assert.ErrorIs(t, o.Classify(StatusDelivered), ErrInvalidStatus)
}

func TestTerminalStatusesRejectTransitions(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Assign("driver-1"))
	require.NoError(t, o.Deliver(""))

	assert.ErrorIs(t, o.Cancel("reason", "comment"), ErrInvalidTransition)
	assert.ErrorIs(t, o.Redistribute(), ErrInvalidTransition)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" in_progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s)

	_, err = ParseStatus("bogus")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusSpammed.Terminal())
	assert.True(t, StatusTest.Terminal())
}
