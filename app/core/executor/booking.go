package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"concierge/app/pkg/types"
)

// BookingExecutor simulates reservations. No live booking provider is
// integrated, so confirmations are generated locally and clearly marked.
type BookingExecutor struct{}

func NewBookingExecutor() *BookingExecutor {
	return &BookingExecutor{}
}

func (e *BookingExecutor) Execute(ctx context.Context, intent types.Intent) (types.TaskResult, error) {
	switch intent.Action {
	case types.ActionBookRestaurant:
		return e.bookRestaurant(intent)
	case types.ActionSearchFlights, types.ActionSearchHotels, types.ActionBookService:
		return types.TaskResult{
			Success: false,
			Message: fmt.Sprintf("Booking action %q is not connected to a provider yet.", intent.Action),
		}, nil
	default:
		return types.TaskResult{
			Success: false,
			Message: fmt.Sprintf("Booking action %q is not supported.", intent.Action),
		}, nil
	}
}

func (e *BookingExecutor) bookRestaurant(intent types.Intent) (types.TaskResult, error) {
	booking := intent.Booking()

	detail := "Reservation requested"
	if booking.PartySize > 0 {
		detail += fmt.Sprintf(" for %d people", booking.PartySize)
	}
	if booking.Time != "" {
		detail += " at " + booking.Time
	}
	if booking.Date != "" {
		detail += " on " + booking.Date
	}

	confirmation := strings.ToUpper(uuid.NewString()[:8])
	return types.TaskResult{
		Success: true,
		Message: detail + ". (Simulated confirmation " + confirmation + ")",
		Data: map[string]interface{}{
			"confirmationCode": confirmation,
			"simulated":        true,
		},
	}, nil
}
