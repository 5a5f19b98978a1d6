package booking

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// QuoteInput carries the provider-submitted fields of a new quote.
type QuoteInput struct {
	ProviderID   UserID
	RequestID    RequestID
	BaseRate     AmountCents
	TravelFee    AmountCents
	Options      []QuoteOption
	Discount     AmountCents
	ValidityDays int
	Message      string
}

// CalculateQuoteTotal returns base + travel + options - discount, floored at zero.
func CalculateQuoteTotal(baseRate AmountCents, travelFee AmountCents, options []QuoteOption, discount AmountCents) AmountCents {
	total := baseRate + travelFee
	for _, option := range options {
		total += option.Price
	}
	total -= discount
	if total < 0 {
		return 0
	}
	return total
}

// CreateQuote issues a quote against an open request and records the provider
// as interested in the same transaction, keeping the quote counter equal to
// the size of the interested set.
func (service *Service) CreateQuote(ctx context.Context, input QuoteInput) (Quote, error) {
	now := service.now()
	var (
		quote    Quote
		clientID UserID
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRequest(ctx, input.RequestID)
		if err != nil {
			return err
		}
		if request.Status != RequestStatusOpen || !now.Before(request.ExpiresAt) {
			return fmt.Errorf("%w: request is %s", ErrRequestClosed, request.Status)
		}
		if request.ClientID == input.ProviderID {
			return ErrForbidden
		}
		existing, err := transactionStore.ListQuotes(ctx, request.ID)
		if err != nil {
			return err
		}
		for _, existingQuote := range existing {
			if existingQuote.ProviderID == input.ProviderID && (existingQuote.Live() || existingQuote.Status == QuoteStatusAccepted) {
				return ErrQuoteExists
			}
		}
		quote, err = newQuote(input, service.newID(), now)
		if err != nil {
			return err
		}
		if err := transactionStore.InsertQuote(ctx, quote); err != nil {
			return err
		}
		interested := request.InterestedProviders
		if !containsUser(interested, input.ProviderID) {
			interested = append(append([]UserID{}, interested...), input.ProviderID)
		}
		clientID = request.ClientID
		return transactionStore.SaveRequestProviders(ctx, request.ID, request.NotifiedProviders, interested)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateQuote,
		ActorID:   input.ProviderID.String(),
		RequestID: input.RequestID.String(),
		QuoteID:   quote.ID.String(),
		Amount:    quote.Total,
		Error:     operationError,
	})
	if operationError != nil {
		return Quote{}, operationError
	}
	service.emit(ctx, Event{Type: EventNewQuote, Recipients: []UserID{clientID}, Data: quoteEventData(quote)})
	return quote, nil
}

func newQuote(input QuoteInput, rawID string, now time.Time) (Quote, error) {
	quoteID, err := NewQuoteID(rawID)
	if err != nil {
		return Quote{}, err
	}
	if input.ProviderID.String() == "" {
		return Quote{}, fmt.Errorf("%w: missing provider", ErrInvalidUserID)
	}
	if input.BaseRate < 0 || input.TravelFee < 0 || input.Discount < 0 {
		return Quote{}, fmt.Errorf("%w: negative quote line", ErrInvalidAmountCents)
	}
	options := make([]QuoteOption, 0, len(input.Options))
	for _, option := range input.Options {
		if option.Price < 0 {
			return Quote{}, fmt.Errorf("%w: negative option %q", ErrInvalidAmountCents, option.Name)
		}
		options = append(options, QuoteOption{Name: strings.TrimSpace(option.Name), Price: option.Price})
	}
	validityDays := input.ValidityDays
	if validityDays <= 0 {
		validityDays = DefaultQuoteValidityDays
	}
	return Quote{
		ID:           quoteID,
		RequestID:    input.RequestID,
		ProviderID:   input.ProviderID,
		BaseRate:     input.BaseRate,
		TravelFee:    input.TravelFee,
		Options:      options,
		Discount:     input.Discount,
		Total:        CalculateQuoteTotal(input.BaseRate, input.TravelFee, options, input.Discount),
		ValidityDays: validityDays,
		Message:      strings.TrimSpace(input.Message),
		Status:       QuoteStatusSent,
		CreatedAt:    now,
		ExpiresAt:    now.AddDate(0, 0, validityDays),
	}, nil
}

// GetQuote loads a quote.
func (service *Service) GetQuote(ctx context.Context, quoteID QuoteID) (Quote, error) {
	return service.store.GetQuote(ctx, quoteID)
}

// ListQuotes lists every quote issued for a request.
func (service *Service) ListQuotes(ctx context.Context, requestID RequestID) ([]Quote, error) {
	return service.store.ListQuotes(ctx, requestID)
}

// MarkQuoteRead moves a sent quote to read. Quotes in any other status are
// returned unchanged.
func (service *Service) MarkQuoteRead(ctx context.Context, clientID UserID, quoteID QuoteID) (Quote, error) {
	now := service.now()
	var (
		quote       Quote
		transitions bool
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		quote, err = transactionStore.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := service.requireRequestOwner(ctx, transactionStore, quote.RequestID, clientID); err != nil {
			return err
		}
		if quote.Status != QuoteStatusSent {
			return nil
		}
		err = transactionStore.UpdateQuoteStatus(ctx, quoteID, QuoteStatusRead, now, QuoteStatusSent)
		if isStatusConflict(err) {
			quote, err = transactionStore.GetQuote(ctx, quoteID)
			return err
		}
		if err != nil {
			return err
		}
		readAt := now
		quote.Status = QuoteStatusRead
		quote.ReadAt = &readAt
		transitions = true
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationMarkQuoteRead,
		ActorID:   clientID.String(),
		RequestID: quote.RequestID.String(),
		QuoteID:   quoteID.String(),
		Error:     operationError,
	})
	if operationError != nil {
		return Quote{}, operationError
	}
	if transitions {
		service.emit(ctx, Event{Type: EventQuoteRead, Recipients: []UserID{quote.ProviderID}, Data: quoteEventData(quote)})
	}
	return quote, nil
}

// AcceptQuote books the quote: it creates the reservation, marks the quote
// accepted, fills the request and refuses every other live quote on it, all
// in one transaction.
func (service *Service) AcceptQuote(ctx context.Context, clientID UserID, quoteID QuoteID) (Reservation, error) {
	now := service.now()
	var (
		quote       Quote
		reservation Reservation
		refused     []Quote
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		quote, err = transactionStore.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if !quote.Live() {
			return fmt.Errorf("%w: quote is %s", ErrQuoteNotAcceptable, quote.Status)
		}
		if !now.Before(quote.ExpiresAt) {
			return fmt.Errorf("%w: quote validity ended", ErrQuoteNotAcceptable)
		}
		request, err := transactionStore.GetRequest(ctx, quote.RequestID)
		if err != nil {
			return err
		}
		if request.ClientID != clientID {
			return ErrForbidden
		}
		if request.Status != RequestStatusOpen {
			return fmt.Errorf("%w: request is %s", ErrRequestClosed, request.Status)
		}
		siblings, err := transactionStore.ListQuotes(ctx, request.ID)
		if err != nil {
			return err
		}

		reservation, err = newReservation(service.newID(), request, quote, now)
		if err != nil {
			return err
		}
		if err := transactionStore.InsertReservation(ctx, reservation); err != nil {
			return err
		}
		if err := transactionStore.UpdateQuoteStatus(ctx, quoteID, QuoteStatusAccepted, now, QuoteStatusSent, QuoteStatusRead); err != nil {
			return err
		}
		if err := transactionStore.LinkQuoteReservation(ctx, quoteID, reservation.ID); err != nil {
			return err
		}
		if err := transactionStore.UpdateRequestStatus(ctx, request.ID, RequestStatusOpen, RequestStatusFilled); err != nil {
			return err
		}
		if _, err := transactionStore.RefuseSiblingQuotes(ctx, request.ID, quoteID); err != nil {
			return err
		}
		for _, sibling := range siblings {
			if sibling.ID != quoteID && sibling.Live() {
				sibling.Status = QuoteStatusRefused
				refused = append(refused, sibling)
			}
		}
		quote.Status = QuoteStatusAccepted
		quote.ReservationID = reservation.ID
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationAcceptQuote,
		ActorID:       clientID.String(),
		RequestID:     quote.RequestID.String(),
		QuoteID:       quoteID.String(),
		ReservationID: reservation.ID.String(),
		Amount:        reservation.Total,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}

	events := []Event{
		{Type: EventQuoteAccepted, Recipients: []UserID{quote.ProviderID}, Data: quoteEventData(quote)},
		{Type: EventRequestFilled, Recipients: []UserID{clientID}, Data: reservationEventData(reservation)},
	}
	for _, sibling := range refused {
		events = append(events, Event{Type: EventQuoteRefused, Recipients: []UserID{sibling.ProviderID}, Data: quoteEventData(sibling)})
	}
	service.emit(ctx, events...)
	return reservation, nil
}

func newReservation(rawID string, request ClientRequest, quote Quote, now time.Time) (Reservation, error) {
	reservationID, err := NewReservationID(rawID)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{
		ID:              reservationID,
		QuoteID:         quote.ID,
		RequestID:       request.ID,
		ClientID:        request.ClientID,
		ProviderID:      quote.ProviderID,
		StartsAt:        request.StartsAt,
		DurationMinutes: request.DurationMinutes,
		Location:        request.Location,
		Total:           quote.Total,
		Status:          ReservationStatusPendingPayment,
		PaymentStatus:   PaymentStatusPending,
		CreatedAt:       now,
	}, nil
}

// RefuseQuote refuses a quote. Refusing an already refused quote is a no-op;
// accepted and expired quotes are terminal and cannot be refused.
func (service *Service) RefuseQuote(ctx context.Context, clientID UserID, quoteID QuoteID) error {
	now := service.now()
	var (
		quote       Quote
		transitions bool
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		var err error
		quote, err = transactionStore.GetQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := service.requireRequestOwner(ctx, transactionStore, quote.RequestID, clientID); err != nil {
			return err
		}
		switch quote.Status {
		case QuoteStatusRefused:
			return nil
		case QuoteStatusAccepted, QuoteStatusExpired:
			return fmt.Errorf("%w: quote is %s", ErrQuoteNotRefusable, quote.Status)
		}
		if err := transactionStore.UpdateQuoteStatus(ctx, quoteID, QuoteStatusRefused, now, QuoteStatusSent, QuoteStatusRead); err != nil {
			return err
		}
		quote.Status = QuoteStatusRefused
		transitions = true
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRefuseQuote,
		ActorID:   clientID.String(),
		RequestID: quote.RequestID.String(),
		QuoteID:   quoteID.String(),
		Error:     operationError,
	})
	if operationError != nil {
		return operationError
	}
	if transitions {
		service.emit(ctx, Event{Type: EventQuoteRefused, Recipients: []UserID{quote.ProviderID}, Data: quoteEventData(quote)})
	}
	return nil
}

func (service *Service) requireRequestOwner(ctx context.Context, transactionStore Store, requestID RequestID, clientID UserID) error {
	request, err := transactionStore.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.ClientID != clientID {
		return ErrForbidden
	}
	return nil
}
