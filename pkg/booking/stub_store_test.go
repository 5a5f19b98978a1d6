package booking

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"
)

type stubStore struct {
	test         *testing.T
	requests     map[RequestID]ClientRequest
	quotes       map[QuoteID]Quote
	reservations map[ReservationID]Reservation
	profiles     map[UserID]ProviderProfile
	reviews      map[ReservationID]Review
	order        []QuoteID
	failOn       map[string]error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		test:         test,
		requests:     map[RequestID]ClientRequest{},
		quotes:       map[QuoteID]Quote{},
		reservations: map[ReservationID]Reservation{},
		profiles:     map[UserID]ProviderProfile{},
		reviews:      map[ReservationID]Review{},
		failOn:       map[string]error{},
	}
}

func (store *stubStore) snapshot() *stubStore {
	clone := newStubStore(store.test)
	for key, value := range store.requests {
		clone.requests[key] = value
	}
	for key, value := range store.quotes {
		clone.quotes[key] = value
	}
	for key, value := range store.reservations {
		clone.reservations[key] = value
	}
	for key, value := range store.profiles {
		clone.profiles[key] = value
	}
	for key, value := range store.reviews {
		clone.reviews[key] = value
	}
	clone.order = append([]QuoteID{}, store.order...)
	return clone
}

func (store *stubStore) restore(from *stubStore) {
	store.requests = from.requests
	store.quotes = from.quotes
	store.reservations = from.reservations
	store.profiles = from.profiles
	store.reviews = from.reviews
	store.order = from.order
}

func (store *stubStore) fail(method string) error {
	return store.failOn[method]
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	saved := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(saved)
		return err
	}
	return nil
}

func (store *stubStore) InsertRequest(_ context.Context, request ClientRequest) error {
	if err := store.fail("InsertRequest"); err != nil {
		return err
	}
	store.requests[request.ID] = request
	return nil
}

func (store *stubStore) GetRequest(_ context.Context, requestID RequestID) (ClientRequest, error) {
	request, ok := store.requests[requestID]
	if !ok {
		return ClientRequest{}, ErrRequestNotFound
	}
	return request, nil
}

func (store *stubStore) ListOpenRequests(_ context.Context, at time.Time) ([]ClientRequest, error) {
	var open []ClientRequest
	for _, request := range store.requests {
		if request.Status == RequestStatusOpen && request.ExpiresAt.After(at) {
			open = append(open, request)
		}
	}
	sort.Slice(open, func(left, right int) bool {
		return open[left].CreatedAt.Before(open[right].CreatedAt)
	})
	return open, nil
}

func (store *stubStore) UpdateRequestStatus(_ context.Context, requestID RequestID, from RequestStatus, to RequestStatus) error {
	if err := store.fail("UpdateRequestStatus"); err != nil {
		return err
	}
	request, ok := store.requests[requestID]
	if !ok || request.Status != from {
		return ErrStatusConflict
	}
	request.Status = to
	store.requests[requestID] = request
	return nil
}

func (store *stubStore) SaveRequestProviders(_ context.Context, requestID RequestID, notified []UserID, interested []UserID) error {
	request, ok := store.requests[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	request.NotifiedProviders = append([]UserID{}, notified...)
	request.InterestedProviders = append([]UserID{}, interested...)
	request.QuotesReceived = len(interested)
	store.requests[requestID] = request
	return nil
}

func (store *stubStore) InsertQuote(_ context.Context, quote Quote) error {
	if _, exists := store.quotes[quote.ID]; exists {
		return fmt.Errorf("duplicate quote %s", quote.ID.String())
	}
	store.quotes[quote.ID] = quote
	store.order = append(store.order, quote.ID)
	return nil
}

func (store *stubStore) GetQuote(_ context.Context, quoteID QuoteID) (Quote, error) {
	quote, ok := store.quotes[quoteID]
	if !ok {
		return Quote{}, ErrQuoteNotFound
	}
	return quote, nil
}

func (store *stubStore) ListQuotes(_ context.Context, requestID RequestID) ([]Quote, error) {
	var quotes []Quote
	for _, quoteID := range store.order {
		if quote := store.quotes[quoteID]; quote.RequestID == requestID {
			quotes = append(quotes, quote)
		}
	}
	return quotes, nil
}

func (store *stubStore) UpdateQuoteStatus(_ context.Context, quoteID QuoteID, to QuoteStatus, at time.Time, from ...QuoteStatus) error {
	quote, ok := store.quotes[quoteID]
	if !ok || !quoteStatusIn(quote.Status, from) {
		return ErrStatusConflict
	}
	quote.Status = to
	if to == QuoteStatusRead {
		readAt := at
		quote.ReadAt = &readAt
	}
	store.quotes[quoteID] = quote
	return nil
}

func (store *stubStore) LinkQuoteReservation(_ context.Context, quoteID QuoteID, reservationID ReservationID) error {
	if err := store.fail("LinkQuoteReservation"); err != nil {
		return err
	}
	quote := store.quotes[quoteID]
	quote.ReservationID = reservationID
	store.quotes[quoteID] = quote
	return nil
}

func (store *stubStore) RefuseSiblingQuotes(_ context.Context, requestID RequestID, acceptedQuoteID QuoteID) (int64, error) {
	if err := store.fail("RefuseSiblingQuotes"); err != nil {
		return 0, err
	}
	var refused int64
	for quoteID, quote := range store.quotes {
		if quote.RequestID == requestID && quoteID != acceptedQuoteID && quote.Live() {
			quote.Status = QuoteStatusRefused
			store.quotes[quoteID] = quote
			refused++
		}
	}
	return refused, nil
}

func (store *stubStore) InsertReservation(_ context.Context, reservation Reservation) error {
	store.reservations[reservation.ID] = reservation
	return nil
}

func (store *stubStore) GetReservation(_ context.Context, reservationID ReservationID) (Reservation, error) {
	reservation, ok := store.reservations[reservationID]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	return reservation, nil
}

func (store *stubStore) UpdateReservationStatus(_ context.Context, reservationID ReservationID, to ReservationStatus, from ...ReservationStatus) error {
	reservation, ok := store.reservations[reservationID]
	if !ok {
		return ErrStatusConflict
	}
	matched := false
	for _, status := range from {
		matched = matched || reservation.Status == status
	}
	if !matched {
		return ErrStatusConflict
	}
	reservation.Status = to
	store.reservations[reservationID] = reservation
	return nil
}

func (store *stubStore) UpdatePaymentStatus(_ context.Context, reservationID ReservationID, from PaymentStatus, to PaymentStatus, sessionID string) error {
	reservation, ok := store.reservations[reservationID]
	if !ok || reservation.PaymentStatus != from {
		return ErrStatusConflict
	}
	reservation.PaymentStatus = to
	reservation.PaymentSessionID = sessionID
	store.reservations[reservationID] = reservation
	return nil
}

func (store *stubStore) ListOverlappingReservations(_ context.Context, providerID UserID, slot TimeSlot, statuses ...ReservationStatus) ([]Reservation, error) {
	var overlapping []Reservation
	for _, reservation := range store.reservations {
		if reservation.ProviderID != providerID {
			continue
		}
		matched := false
		for _, status := range statuses {
			matched = matched || reservation.Status == status
		}
		if matched && reservation.StartsAt.Before(slot.End) && reservation.EndsAt().After(slot.Start) {
			overlapping = append(overlapping, reservation)
		}
	}
	return overlapping, nil
}

func (store *stubStore) ExpireQuotes(_ context.Context, at time.Time) (int64, error) {
	var expired int64
	for quoteID, quote := range store.quotes {
		if quote.Live() && !quote.ExpiresAt.After(at) {
			quote.Status = QuoteStatusExpired
			store.quotes[quoteID] = quote
			expired++
		}
	}
	return expired, nil
}

func (store *stubStore) ExpireRequests(_ context.Context, at time.Time) (int64, error) {
	var expired int64
	for requestID, request := range store.requests {
		if request.Status == RequestStatusOpen && !request.ExpiresAt.After(at) {
			request.Status = RequestStatusExpired
			store.requests[requestID] = request
			expired++
		}
	}
	return expired, nil
}

func (store *stubStore) ExpireUnpaidReservations(_ context.Context, at time.Time) (int64, error) {
	var expired int64
	for reservationID, reservation := range store.reservations {
		if reservation.Status == ReservationStatusPendingPayment && !reservation.StartsAt.After(at) {
			reservation.Status = ReservationStatusCancelled
			store.reservations[reservationID] = reservation
			expired++
		}
	}
	return expired, nil
}

func (store *stubStore) UpsertProviderProfile(_ context.Context, profile ProviderProfile) error {
	store.profiles[profile.ProviderID] = profile
	return nil
}

func (store *stubStore) GetProviderProfile(_ context.Context, providerID UserID) (ProviderProfile, error) {
	profile, ok := store.profiles[providerID]
	if !ok {
		return ProviderProfile{}, ErrProfileNotFound
	}
	return profile, nil
}

func (store *stubStore) ListAvailableProfiles(_ context.Context) ([]ProviderProfile, error) {
	var profiles []ProviderProfile
	for _, profile := range store.profiles {
		if profile.GenerallyAvailable {
			profiles = append(profiles, profile)
		}
	}
	sort.Slice(profiles, func(left, right int) bool {
		return profiles[left].ProviderID.String() < profiles[right].ProviderID.String()
	})
	return profiles, nil
}

func (store *stubStore) InsertReview(_ context.Context, review Review) error {
	if _, exists := store.reviews[review.ReservationID]; exists {
		return ErrReviewExists
	}
	store.reviews[review.ReservationID] = review
	return nil
}

func quoteStatusIn(status QuoteStatus, candidates []QuoteStatus) bool {
	for _, candidate := range candidates {
		if status == candidate {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	events []Event
}

func (notifier *recordingNotifier) Notify(_ context.Context, event Event) {
	notifier.events = append(notifier.events, event)
}

func (notifier *recordingNotifier) ofType(eventType EventType) []Event {
	var matched []Event
	for _, event := range notifier.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type stubPayments struct {
	sessions map[string]PaymentSession
}

func (payments stubPayments) LookupSession(_ context.Context, sessionID string) (PaymentSession, error) {
	session, ok := payments.sessions[sessionID]
	if !ok {
		return PaymentSession{}, ErrPaymentSessionNotFound
	}
	return session, nil
}

var testNow = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store    *stubStore
	notifier *recordingNotifier
	service  *Service
	clock    *time.Time
}

func newFixture(test *testing.T, options ...ServiceOption) fixture {
	test.Helper()
	store := newStubStore(test)
	notifier := &recordingNotifier{}
	clock := testNow
	counter := 0
	options = append([]ServiceOption{
		WithEventNotifier(notifier),
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("id-%d", counter)
		}),
	}, options...)
	service, err := NewService(store, func() time.Time { return clock }, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return fixture{store: store, notifier: notifier, service: service, clock: &clock}
}

func (f fixture) advance(duration time.Duration) {
	*f.clock = f.clock.Add(duration)
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	userID, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func (f fixture) mustRequest(test *testing.T, client UserID) ClientRequest {
	test.Helper()
	request, err := f.service.CreateRequest(context.Background(), RequestInput{
		ClientID:        client,
		CategoryID:      "mariage",
		Title:           "Mariage a Lyon",
		StartsAt:        testNow.Add(14 * 24 * time.Hour),
		DurationMinutes: 240,
		Location:        Location{City: "Lyon", PostalCode: "69001"},
		BudgetMax:       150000,
	})
	if err != nil {
		test.Fatalf("create request: %v", err)
	}
	return request
}

func (f fixture) mustQuote(test *testing.T, requestID RequestID, provider UserID, baseRate AmountCents) Quote {
	test.Helper()
	quote, err := f.service.CreateQuote(context.Background(), QuoteInput{
		ProviderID: provider,
		RequestID:  requestID,
		BaseRate:   baseRate,
	})
	if err != nil {
		test.Fatalf("create quote: %v", err)
	}
	return quote
}
