package order

import (
	"errors"
	"strings"
	"time"
)

// LineItem is one product row on an order. Price and IsFree travel together
// untouched: a free item still carries its nominal price so clients can show
// the struck-through amount next to the "free" label.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	IsFree    bool    `json:"is_free"`
}

// Order is the domain entity corresponding to the `orders` table.
type Order struct {
	// Identity & audit
	ID        string
	Number    string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Actors
	ClientID string
	DriverID *string // nil until assigned

	// Core state
	Status      Status
	SeenByAdmin bool

	// Lifecycle timestamps
	AssignedAt      *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	RedistributedAt *time.Time

	// Driver-provided detail
	DeliveryComment *string
	CancelReason    *string
	CancelComment   *string

	// Contents
	Items []LineItem
	Total float64
}

var (
	ErrClientRequired    = errors.New("client id is required")
	ErrNumberRequired    = errors.New("order number is required")
	ErrDriverRequired    = errors.New("driver id is required")
	ErrNoDriverAssigned  = errors.New("no driver assigned")
	ErrAlreadyAssigned   = errors.New("driver already assigned")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrReasonRequired    = errors.New("cancellation reason is required")
	ErrCommentRequired   = errors.New("cancellation comment is required")
	ErrNotClassifiable   = errors.New("only pending orders can be classified")
)

// New creates a new order in PENDING state, unseen by admin.
func New(number, clientID string, items []LineItem) (*Order, error) {
	if number = strings.TrimSpace(number); number == "" {
		return nil, ErrNumberRequired
	}
	if clientID = strings.TrimSpace(clientID); clientID == "" {
		return nil, ErrClientRequired
	}

	now := time.Now().UTC()
	o := &Order{
		Number:    number,
		CreatedAt: now,
		UpdatedAt: now,
		ClientID:  clientID,
		Status:    StatusPending,
		Items:     append([]LineItem(nil), items...),
	}
	o.Total = SumTotal(o.Items)
	return o, nil
}

// SumTotal prices an item list. Free items contribute nothing to the total
// but keep their nominal price on the line for display.
func SumTotal(items []LineItem) float64 {
	var total float64
	for _, it := range items {
		if it.IsFree {
			continue
		}
		q := it.Quantity
		if q < 1 {
			q = 1
		}
		total += it.Price * float64(q)
	}
	return total
}

// Assign moves PENDING -> IN_PROGRESS and records the driver.
func (o *Order) Assign(driverID string) error {
	if strings.TrimSpace(driverID) == "" {
		return ErrDriverRequired
	}
	if o.DriverID != nil && *o.DriverID != "" {
		return ErrAlreadyAssigned
	}
	if !o.Status.CanTransitionTo(StatusInProgress) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	o.DriverID = &driverID
	o.AssignedAt = &now
	o.setStatus(StatusInProgress)
	return nil
}

// Deliver moves IN_PROGRESS -> DELIVERED with an optional free-text comment.
func (o *Order) Deliver(comment string) error {
	if o.DriverID == nil || *o.DriverID == "" {
		return ErrNoDriverAssigned
	}
	if !o.Status.CanTransitionTo(StatusDelivered) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	o.DeliveredAt = &now
	if c := strings.TrimSpace(comment); c != "" {
		o.DeliveryComment = &c
	}
	o.setStatus(StatusDelivered)
	return nil
}

// Cancel moves IN_PROGRESS -> CANCELLED. Both a reason code and a comment are
// required; a blank in either rejects the whole transition.
func (o *Order) Cancel(reason, comment string) error {
	reason = strings.TrimSpace(reason)
	comment = strings.TrimSpace(comment)
	if reason == "" {
		return ErrReasonRequired
	}
	if comment == "" {
		return ErrCommentRequired
	}
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	o.CancelledAt = &now
	o.CancelReason = &reason
	o.CancelComment = &comment
	o.setStatus(StatusCancelled)
	return nil
}

// Redistribute moves IN_PROGRESS back to PENDING and clears the driver so the
// order re-queues for assignment. No reason is required.
func (o *Order) Redistribute() error {
	if !o.Status.CanTransitionTo(StatusPending) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	o.DriverID = nil
	o.AssignedAt = nil
	o.RedistributedAt = &now
	o.setStatus(StatusPending)
	return nil
}

// Classify tags a pending order SPAMMED or TEST instead of dispatching it.
func (o *Order) Classify(tag Status) error {
	if tag != StatusSpammed && tag != StatusTest {
		return ErrInvalidStatus
	}
	if o.Status != StatusPending {
		return ErrNotClassifiable
	}
	o.setStatus(tag)
	return nil
}

// ----- internal helpers -----

// setStatus records the new status and reactivates the admin unread badge
// for the target bucket.
func (o *Order) setStatus(status Status) {
	o.Status = status
	o.SeenByAdmin = false
	o.touch()
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
