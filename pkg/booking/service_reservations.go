package booking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPendingPayment: {ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusConfirmed:      {ReservationStatusInProgress, ReservationStatusCancelled},
	ReservationStatusInProgress:     {ReservationStatusCompleted},
}

// CanTransition reports whether a reservation may move from one status to another.
func CanTransition(from ReservationStatus, to ReservationStatus) bool {
	for _, allowed := range reservationTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// GetReservation loads a reservation visible to actorID.
func (service *Service) GetReservation(ctx context.Context, actorID UserID, reservationID ReservationID) (Reservation, error) {
	reservation, err := service.store.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, err
	}
	if reservation.ClientID != actorID && reservation.ProviderID != actorID {
		return Reservation{}, ErrForbidden
	}
	return reservation, nil
}

// UpdateReservationStatus moves a reservation along the booking lattice.
// The provider drives every transition; the client may only cancel.
func (service *Service) UpdateReservationStatus(ctx context.Context, actorID UserID, reservationID ReservationID, to ReservationStatus) (Reservation, error) {
	var reservation Reservation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		reservation, err = transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		isProvider := reservation.ProviderID == actorID
		isClient := reservation.ClientID == actorID
		if !isProvider && !(isClient && to == ReservationStatusCancelled) {
			return ErrForbidden
		}
		if !CanTransition(reservation.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, reservation.Status, to)
		}
		if err := transactionStore.UpdateReservationStatus(ctx, reservationID, to, reservation.Status); err != nil {
			return err
		}
		reservation.Status = to
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationUpdateReservation,
		ActorID:       actorID.String(),
		RequestID:     reservation.RequestID.String(),
		ReservationID: reservationID.String(),
		Amount:        reservation.Total,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	service.emit(ctx, Event{
		Type:       EventReservationUpdated,
		Recipients: counterparts(reservation, actorID),
		Data:       reservationEventData(reservation),
	})
	return reservation, nil
}

// ConfirmPayment applies the outcome of a checkout session. A paid session
// confirms a pending reservation; delivering the same session twice changes
// nothing the second time.
func (service *Service) ConfirmPayment(ctx context.Context, sessionID string) (Reservation, error) {
	if service.payments == nil {
		return Reservation{}, ErrPaymentUnavailable
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Reservation{}, fmt.Errorf("%w: empty session id", ErrPaymentSessionNotFound)
	}
	session, err := service.payments.LookupSession(ctx, sessionID)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationConfirmPayment, Error: err})
		return Reservation{}, err
	}

	var (
		reservation Reservation
		confirmed   bool
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		reservation, err = transactionStore.GetReservation(ctx, session.ReservationID)
		if err != nil {
			return err
		}
		if reservation.PaymentStatus == PaymentStatusPaid || reservation.PaymentStatus == PaymentStatusRefunded {
			return nil
		}
		switch session.Status {
		case PaymentStatusPaid:
		case PaymentStatusFailed:
			if reservation.PaymentStatus == PaymentStatusFailed {
				return nil
			}
			if err := transactionStore.UpdatePaymentStatus(ctx, reservation.ID, reservation.PaymentStatus, PaymentStatusFailed, session.SessionID); err != nil {
				return err
			}
			reservation.PaymentStatus = PaymentStatusFailed
			reservation.PaymentSessionID = session.SessionID
			return nil
		default:
			return nil
		}
		if session.Amount != reservation.Total {
			return fmt.Errorf("%w: session %d, reservation %d", ErrPaymentAmountMismatch, session.Amount, reservation.Total)
		}
		if reservation.Status != ReservationStatusPendingPayment {
			return fmt.Errorf("%w: reservation is %s", ErrInvalidTransition, reservation.Status)
		}
		if err := transactionStore.UpdatePaymentStatus(ctx, reservation.ID, reservation.PaymentStatus, PaymentStatusPaid, session.SessionID); err != nil {
			return err
		}
		if err := transactionStore.UpdateReservationStatus(ctx, reservation.ID, ReservationStatusConfirmed, ReservationStatusPendingPayment); err != nil {
			return err
		}
		reservation.PaymentStatus = PaymentStatusPaid
		reservation.PaymentSessionID = session.SessionID
		reservation.Status = ReservationStatusConfirmed
		confirmed = true
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationConfirmPayment,
		ReservationID: session.ReservationID.String(),
		RequestID:     reservation.RequestID.String(),
		Amount:        session.Amount,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	if confirmed {
		service.emit(ctx, Event{
			Type:       EventPaymentConfirmed,
			Recipients: []UserID{reservation.ClientID, reservation.ProviderID},
			Data:       reservationEventData(reservation),
		})
	}
	return reservation, nil
}

// ReviewInput carries a client's rating of a completed reservation.
type ReviewInput struct {
	ReservationID ReservationID
	ClientID      UserID
	Rating        int
	Comment       string
}

// SubmitReview records the single review allowed per completed reservation.
func (service *Service) SubmitReview(ctx context.Context, input ReviewInput) (Review, error) {
	now := service.now()
	var review Review
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if input.Rating < minimumRating || input.Rating > maximumRating {
			return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidRating, input.Rating, minimumRating, maximumRating)
		}
		reservation, err := transactionStore.GetReservation(ctx, input.ReservationID)
		if err != nil {
			return err
		}
		if reservation.ClientID != input.ClientID {
			return ErrForbidden
		}
		if reservation.Status != ReservationStatusCompleted {
			return fmt.Errorf("%w: reservation is %s", ErrReviewNotAllowed, reservation.Status)
		}
		review = Review{
			ID:            service.newID(),
			ReservationID: reservation.ID,
			ClientID:      reservation.ClientID,
			ProviderID:    reservation.ProviderID,
			Rating:        input.Rating,
			Comment:       strings.TrimSpace(input.Comment),
			CreatedAt:     now,
		}
		return transactionStore.InsertReview(ctx, review)
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationSubmitReview,
		ActorID:       input.ClientID.String(),
		ReservationID: input.ReservationID.String(),
		Error:         operationError,
	})
	if operationError != nil {
		return Review{}, operationError
	}
	service.emit(ctx, Event{
		Type:       EventReviewReceived,
		Recipients: []UserID{review.ProviderID},
		Data: map[string]string{
			EventKeyReservationID: review.ReservationID.String(),
			EventKeyRating:        strconv.Itoa(review.Rating),
		},
	})
	return review, nil
}

// Reasons reported by CheckAvailability.
const (
	AvailabilityReasonUnavailable = "photographe indisponible"
	AvailabilityReasonBlocked     = "creneau bloque"
	AvailabilityReasonBooked      = "reservation existante sur le creneau"
)

// Availability is the outcome of an availability check.
type Availability struct {
	Available bool   `json:"disponible"`
	Reason    string `json:"raison,omitempty"`
}

// CheckAvailability reports whether the provider can take the slot
// [start, start+duration). Confirmed and in-progress reservations block the
// slot; pending-payment ones do not.
func (service *Service) CheckAvailability(ctx context.Context, providerID UserID, start time.Time, duration time.Duration) (Availability, error) {
	if start.IsZero() || duration <= 0 {
		return Availability{}, fmt.Errorf("%w: empty slot", ErrInvalidSchedule)
	}
	profile, err := service.store.GetProviderProfile(ctx, providerID)
	if err != nil {
		return Availability{}, err
	}
	if !profile.GenerallyAvailable {
		return Availability{Reason: AvailabilityReasonUnavailable}, nil
	}
	candidate := TimeSlot{Start: start.UTC(), End: start.UTC().Add(duration)}
	for _, blocked := range profile.BlockedSlots {
		if candidate.Overlaps(blocked) {
			return Availability{Reason: AvailabilityReasonBlocked}, nil
		}
	}
	overlapping, err := service.store.ListOverlappingReservations(ctx, providerID, candidate,
		ReservationStatusConfirmed, ReservationStatusInProgress)
	if err != nil {
		return Availability{}, err
	}
	if len(overlapping) > 0 {
		return Availability{Reason: AvailabilityReasonBooked}, nil
	}
	return Availability{Available: true}, nil
}

func counterparts(reservation Reservation, actorID UserID) []UserID {
	switch actorID {
	case reservation.ProviderID:
		return []UserID{reservation.ClientID}
	case reservation.ClientID:
		return []UserID{reservation.ProviderID}
	}
	return []UserID{reservation.ClientID, reservation.ProviderID}
}
