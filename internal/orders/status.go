package orders

import (
	"fmt"

	"github.com/enamelgeorgia/storefront/pkg/enums"
	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
)

// transitions is the full order status graph. Anything not listed is
// an illegal move.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:       {enums.OrderStatusProcessing, enums.OrderStatusCancelled, enums.OrderStatusRefunded},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {enums.OrderStatusRefunded},
	enums.OrderStatusCancelled:  {},
	enums.OrderStatusRefunded:   {},
}

// CanTransition reports whether the graph allows moving from one
// status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func assertTransition(from, to enums.OrderStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", to))
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(
			pkgerrors.CodeBusinessRule,
			fmt.Sprintf("cannot transition order from %s to %s", from, to),
		)
	}
	return nil
}
