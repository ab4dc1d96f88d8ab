/*
lifecycle.go - Settlement status machine

PURPOSE:
  Enforces the settlement lifecycle: open -> approved -> paid, with
  cancelled reachable from open or approved. Marking a settlement paid
  requires a recorded payment date and method. After the status leaves
  open, the header (notes, status, payment metadata) may still change but
  day records are frozen; the service enforces that boundary.
*/
package settlement

type Status string

const (
	StatusOpen      Status = "open"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

var validTransitions = map[Status][]Status{
	StatusOpen:      {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusPaid, StatusCancelled},
	StatusPaid:      {},
	StatusCancelled: {},
}

// IsValid reports whether the value is a known status.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo reports whether the status machine allows the move.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the settlement to the next status. Transitioning to paid
// requires payment details; they are recorded on the header.
func (s *Settlement) Transition(next Status, payment *Payment) error {
	if !next.IsValid() {
		return ErrInvalidStatusChange
	}
	if !s.Status.CanTransitionTo(next) {
		return ErrInvalidStatusChange
	}
	if next == StatusPaid {
		if payment == nil || payment.Date.IsZero() || payment.Method == "" {
			return ErrPaymentDetailsRequired
		}
		s.Payment = payment
	}
	s.Status = next
	return nil
}
