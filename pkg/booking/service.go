package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service contains the domain logic over a Store.
type Service struct {
	store    Store
	nowFn    func() time.Time
	newID    func() string
	logger   OperationLogger
	notifier EventNotifier
	payments PaymentLookup
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, newID: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// WithIDGenerator replaces the uuid generator used for new entities.
func WithIDGenerator(generator func() string) ServiceOption {
	return func(service *Service) {
		if generator != nil {
			service.newID = generator
		}
	}
}

// RequestInput carries the client-submitted fields of a new request.
type RequestInput struct {
	ClientID        UserID
	CategoryID      string
	Title           string
	Description     string
	StartsAt        time.Time
	DurationMinutes int
	Location        Location
	BudgetMin       AmountCents
	BudgetMax       AmountCents
}

// CreateRequest opens a request with zeroed counters that expires after RequestLifetime.
func (service *Service) CreateRequest(ctx context.Context, input RequestInput) (ClientRequest, error) {
	now := service.now()
	request, err := newClientRequest(input, service.newID(), now)
	if err == nil {
		err = service.store.InsertRequest(ctx, request)
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateRequest,
		ActorID:   input.ClientID.String(),
		RequestID: request.ID.String(),
		Amount:    input.BudgetMax,
		Error:     err,
	})
	if err != nil {
		return ClientRequest{}, err
	}
	return request, nil
}

func newClientRequest(input RequestInput, rawID string, now time.Time) (ClientRequest, error) {
	requestID, err := NewRequestID(rawID)
	if err != nil {
		return ClientRequest{}, err
	}
	if input.ClientID.String() == "" {
		return ClientRequest{}, fmt.Errorf("%w: missing client", ErrInvalidUserID)
	}
	categoryID := strings.TrimSpace(input.CategoryID)
	if categoryID == "" {
		return ClientRequest{}, fmt.Errorf("%w: empty value", ErrInvalidCategory)
	}
	if input.StartsAt.IsZero() || input.StartsAt.Before(now) {
		return ClientRequest{}, fmt.Errorf("%w: start must be in the future", ErrInvalidSchedule)
	}
	if input.DurationMinutes <= 0 {
		return ClientRequest{}, fmt.Errorf("%w: duration must be positive", ErrInvalidSchedule)
	}
	if input.BudgetMin < 0 || input.BudgetMax < 0 {
		return ClientRequest{}, fmt.Errorf("%w: negative budget", ErrInvalidBudget)
	}
	if input.BudgetMax > 0 && input.BudgetMin > input.BudgetMax {
		return ClientRequest{}, fmt.Errorf("%w: minimum above maximum", ErrInvalidBudget)
	}
	return ClientRequest{
		ID:                  requestID,
		ClientID:            input.ClientID,
		CategoryID:          categoryID,
		Title:               strings.TrimSpace(input.Title),
		Description:         strings.TrimSpace(input.Description),
		StartsAt:            input.StartsAt.UTC(),
		DurationMinutes:     input.DurationMinutes,
		Location:            input.Location,
		BudgetMin:           input.BudgetMin,
		BudgetMax:           input.BudgetMax,
		Status:              RequestStatusOpen,
		QuotesReceived:      0,
		NotifiedProviders:   []UserID{},
		InterestedProviders: []UserID{},
		CreatedAt:           now,
		ExpiresAt:           now.Add(RequestLifetime),
	}, nil
}

// GetRequest loads a request.
func (service *Service) GetRequest(ctx context.Context, requestID RequestID) (ClientRequest, error) {
	return service.store.GetRequest(ctx, requestID)
}

// CancelRequest moves an open request owned by clientID to cancelled.
func (service *Service) CancelRequest(ctx context.Context, clientID UserID, requestID RequestID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		request, err := transactionStore.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if request.ClientID != clientID {
			return ErrForbidden
		}
		if request.Status != RequestStatusOpen {
			return fmt.Errorf("%w: request is %s", ErrRequestClosed, request.Status)
		}
		return transactionStore.UpdateRequestStatus(ctx, requestID, RequestStatusOpen, RequestStatusCancelled)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationCancelRequest,
		ActorID:   clientID.String(),
		RequestID: requestID.String(),
		Error:     operationError,
	})
	return operationError
}

// SweepExpired expires stale quotes, requests and unpaid reservations whose
// slot has started. Updates are status-predicated so concurrent or repeated
// runs leave the same final state.
func (service *Service) SweepExpired(ctx context.Context) (SweepResult, error) {
	now := service.now()
	var result SweepResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		quotes, err := transactionStore.ExpireQuotes(ctx, now)
		if err != nil {
			return err
		}
		requests, err := transactionStore.ExpireRequests(ctx, now)
		if err != nil {
			return err
		}
		reservations, err := transactionStore.ExpireUnpaidReservations(ctx, now)
		if err != nil {
			return err
		}
		result = SweepResult{QuotesExpired: quotes, RequestsExpired: requests, ReservationsExpired: reservations}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationSweep,
		Error:     operationError,
	})
	if operationError != nil {
		return SweepResult{}, operationError
	}
	return result, nil
}

func (service *Service) now() time.Time {
	return service.nowFn().UTC()
}

func containsUser(users []UserID, candidate UserID) bool {
	for _, user := range users {
		if user == candidate {
			return true
		}
	}
	return false
}

func isStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}
