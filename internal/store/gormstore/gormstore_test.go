package gormstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/photobook/internal/notify"
	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/MarkoPoloResearchLab/photobook/pkg/matching"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var storeTestNow = time.Date(2026, time.April, 6, 9, 0, 0, 0, time.UTC)

func openTestDatabase(test *testing.T) *gorm.DB {
	test.Helper()
	database, err := gorm.Open(sqlite.Open(test.TempDir()+"/photobook.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	if err := Migrate(database); err != nil {
		test.Fatalf("migrate failed: %v", err)
	}
	return database
}

type storeFixture struct {
	database *gorm.DB
	store    *Store
	service  *booking.Service
	clock    *time.Time
}

func newStoreFixture(test *testing.T) storeFixture {
	test.Helper()
	database := openTestDatabase(test)
	store := New(database)
	clock := storeTestNow
	counter := 0
	service, err := booking.NewService(store, func() time.Time { return clock },
		booking.WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("id-%03d", counter)
		}))
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return storeFixture{database: database, store: store, service: service, clock: &clock}
}

func mustUserID(test *testing.T, raw string) booking.UserID {
	test.Helper()
	userID, err := booking.NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func (f storeFixture) mustRequest(test *testing.T, client booking.UserID) booking.ClientRequest {
	test.Helper()
	request, err := f.service.CreateRequest(context.Background(), booking.RequestInput{
		ClientID:        client,
		CategoryID:      "mariage",
		Title:           "Mariage à Annecy",
		StartsAt:        storeTestNow.Add(10 * 24 * time.Hour),
		DurationMinutes: 180,
		Location: booking.Location{
			City:        "Annecy",
			PostalCode:  "74000",
			Coordinates: &matching.Coordinates{Latitude: 45.8992, Longitude: 6.1294},
		},
		BudgetMax: 200000,
	})
	if err != nil {
		test.Fatalf("create request: %v", err)
	}
	return request
}

func (f storeFixture) mustQuote(test *testing.T, requestID booking.RequestID, provider booking.UserID) booking.Quote {
	test.Helper()
	quote, err := f.service.CreateQuote(context.Background(), booking.QuoteInput{
		ProviderID: provider,
		RequestID:  requestID,
		BaseRate:   90000,
		TravelFee:  4000,
		Options:    []booking.QuoteOption{{Name: "album", Price: 15000}},
		Discount:   9000,
	})
	if err != nil {
		test.Fatalf("create quote: %v", err)
	}
	return quote
}

func TestRequestRoundTrip(test *testing.T) {
	test.Parallel()
	f := newStoreFixture(test)
	request := f.mustRequest(test, mustUserID(test, "client-1"))

	loaded, err := f.store.GetRequest(context.Background(), request.ID)
	if err != nil {
		test.Fatalf("get request: %v", err)
	}
	if loaded.Status != booking.RequestStatusOpen || loaded.Location.Coordinates == nil || loaded.Location.Coordinates.Latitude != 45.8992 {
		test.Fatalf("unexpected loaded request: %+v", loaded)
	}
	if !loaded.StartsAt.Equal(request.StartsAt) || !loaded.ExpiresAt.Equal(request.ExpiresAt) {
		test.Fatalf("expected timestamps preserved, got %s / %s", loaded.StartsAt, loaded.ExpiresAt)
	}
	if len(loaded.NotifiedProviders) != 0 || len(loaded.InterestedProviders) != 0 {
		test.Fatalf("expected empty provider sets, got %+v", loaded)
	}

	missing, _ := booking.NewRequestID("missing")
	if _, err := f.store.GetRequest(context.Background(), missing); !errors.Is(err, booking.ErrRequestNotFound) {
		test.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestUpdateRequestStatusIsConditional(test *testing.T) {
	test.Parallel()
	f := newStoreFixture(test)
	request := f.mustRequest(test, mustUserID(test, "client-1"))

	if err := f.store.UpdateRequestStatus(context.Background(), request.ID, booking.RequestStatusOpen, booking.RequestStatusCancelled); err != nil {
		test.Fatalf("update: %v", err)
	}
	err := f.store.UpdateRequestStatus(context.Background(), request.ID, booking.RequestStatusOpen, booking.RequestStatusFilled)
	if !errors.Is(err, booking.ErrStatusConflict) {
		test.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	var storeError *booking.StoreError
	if !errors.As(err, &storeError) || storeError.Entity != entityRequest || storeError.Action != actionUpdateStatus {
		test.Fatalf("expected update_status request error, got %v", err)
	}
}

func TestAcceptQuoteCascadePersists(test *testing.T) {
	test.Parallel()
	f := newStoreFixture(test)
	client := mustUserID(test, "client-1")
	request := f.mustRequest(test, client)
	first := f.mustQuote(test, request.ID, mustUserID(test, "provider-1"))
	second := f.mustQuote(test, request.ID, mustUserID(test, "provider-2"))

	stored, err := f.store.GetRequest(context.Background(), request.ID)
	if err != nil {
		test.Fatalf("get request: %v", err)
	}
	if stored.QuotesReceived != 2 || len(stored.InterestedProviders) != 2 {
		test.Fatalf("expected counter reconciled with interested set, got %d / %v", stored.QuotesReceived, stored.InterestedProviders)
	}
	if first.Total != 100000 {
		test.Fatalf("expected total 100000, got %d", first.Total)
	}

	reservation, err := f.service.AcceptQuote(context.Background(), client, first.ID)
	if err != nil {
		test.Fatalf("accept: %v", err)
	}
	loadedReservation, err := f.store.GetReservation(context.Background(), reservation.ID)
	if err != nil {
		test.Fatalf("get reservation: %v", err)
	}
	if loadedReservation.Total != first.Total || loadedReservation.Status != booking.ReservationStatusPendingPayment {
		test.Fatalf("unexpected reservation: %+v", loadedReservation)
	}
	accepted, err := f.store.GetQuote(context.Background(), first.ID)
	if err != nil {
		test.Fatalf("get accepted quote: %v", err)
	}
	if accepted.Status != booking.QuoteStatusAccepted || accepted.ReservationID != reservation.ID {
		test.Fatalf("unexpected accepted quote: %+v", accepted)
	}
	if len(accepted.Options) != 1 || accepted.Options[0].Name != "album" {
		test.Fatalf("expected options preserved, got %+v", accepted.Options)
	}
	refused, err := f.store.GetQuote(context.Background(), second.ID)
	if err != nil {
		test.Fatalf("get sibling: %v", err)
	}
	if refused.Status != booking.QuoteStatusRefused {
		test.Fatalf("expected refused sibling, got %s", refused.Status)
	}
	filled, err := f.store.GetRequest(context.Background(), request.ID)
	if err != nil {
		test.Fatalf("get filled request: %v", err)
	}
	if filled.Status != booking.RequestStatusFilled {
		test.Fatalf("expected filled request, got %s", filled.Status)
	}

	if _, err := f.service.AcceptQuote(context.Background(), client, first.ID); !errors.Is(err, booking.ErrQuoteNotAcceptable) {
		test.Fatalf("expected ErrQuoteNotAcceptable, got %v", err)
	}
	var count int64
	if err := f.database.Model(&Reservation{}).Count(&count).Error; err != nil {
		test.Fatalf("count reservations: %v", err)
	}
	if count != 1 {
		test.Fatalf("expected a single reservation, got %d", count)
	}
}

func TestSweepExpiredPersistsAndRepeats(test *testing.T) {
	test.Parallel()
	f := newStoreFixture(test)
	client := mustUserID(test, "client-1")
	request := f.mustRequest(test, client)
	quote := f.mustQuote(test, request.ID, mustUserID(test, "provider-1"))

	*f.clock = storeTestNow.Add(8 * 24 * time.Hour)
	result, err := f.service.SweepExpired(context.Background())
	if err != nil {
		test.Fatalf("sweep: %v", err)
	}
	if result.QuotesExpired != 1 || result.RequestsExpired != 0 {
		test.Fatalf("unexpected sweep: %+v", result)
	}
	again, err := f.service.SweepExpired(context.Background())
	if err != nil {
		test.Fatalf("second sweep: %v", err)
	}
	if again != (booking.SweepResult{}) {
		test.Fatalf("expected idempotent sweep, got %+v", again)
	}
	expired, err := f.store.GetQuote(context.Background(), quote.ID)
	if err != nil {
		test.Fatalf("get quote: %v", err)
	}
	if expired.Status != booking.QuoteStatusExpired {
		test.Fatalf("expected expired quote, got %s", expired.Status)
	}

	*f.clock = storeTestNow.Add(31 * 24 * time.Hour)
	final, err := f.service.SweepExpired(context.Background())
	if err != nil {
		test.Fatalf("final sweep: %v", err)
	}
	if final.RequestsExpired != 1 {
		test.Fatalf("expected expired request, got %+v", final)
	}
}

func TestProfilesAndAvailability(test *testing.T) {
	test.Parallel()
	f := newStoreFixture(test)
	provider := mustUserID(test, "provider-1")
	blockedStart := storeTestNow.Add(3 * 24 * time.Hour)
	if _, err := f.service.SaveProviderProfile(context.Background(), booking.ProviderProfile{
		ProviderID:         provider,
		Specializations:    []string{"mariage"},
		Styles:             []string{"reportage"},
		TravelRadiusKm:     50,
		PostalCode:         "74000",
		Coordinates:        &matching.Coordinates{Latitude: 45.90, Longitude: 6.13},
		Verification:       matching.VerificationVerified,
		GenerallyAvailable: true,
		BlockedSlots:       []booking.TimeSlot{{Start: blockedStart, End: blockedStart.Add(24 * time.Hour)}},
	}); err != nil {
		test.Fatalf("save profile: %v", err)
	}
	if _, err := f.service.SaveProviderProfile(context.Background(), booking.ProviderProfile{
		ProviderID: mustUserID(test, "provider-away"), Specializations: []string{"mariage"}, GenerallyAvailable: false,
	}); err != nil {
		test.Fatalf("save away profile: %v", err)
	}

	loaded, err := f.store.GetProviderProfile(context.Background(), provider)
	if err != nil {
		test.Fatalf("get profile: %v", err)
	}
	if len(loaded.BlockedSlots) != 1 || !loaded.BlockedSlots[0].Start.Equal(blockedStart) || loaded.Styles[0] != "reportage" {
		test.Fatalf("unexpected loaded profile: %+v", loaded)
	}
	available, err := f.store.ListAvailableProfiles(context.Background())
	if err != nil {
		test.Fatalf("list available: %v", err)
	}
	if len(available) != 1 || available[0].ProviderID != provider {
		test.Fatalf("expected only the available provider, got %+v", available)
	}

	blocked, err := f.service.CheckAvailability(context.Background(), provider, blockedStart.Add(2*time.Hour), time.Hour)
	if err != nil {
		test.Fatalf("check blocked: %v", err)
	}
	if blocked.Available || blocked.Reason != booking.AvailabilityReasonBlocked {
		test.Fatalf("expected blocked slot, got %+v", blocked)
	}

	client := mustUserID(test, "client-1")
	request := f.mustRequest(test, client)
	matches, err := f.service.MatchProviders(context.Background(), request.ID, 0)
	if err != nil {
		test.Fatalf("match providers: %v", err)
	}
	if len(matches) != 1 || matches[0].Result.DistanceKm == nil {
		test.Fatalf("expected one geo match, got %+v", matches)
	}
	quote := f.mustQuote(test, request.ID, provider)
	reservation, err := f.service.AcceptQuote(context.Background(), client, quote.ID)
	if err != nil {
		test.Fatalf("accept: %v", err)
	}
	if _, err := f.service.UpdateReservationStatus(context.Background(), provider, reservation.ID, booking.ReservationStatusConfirmed); err != nil {
		test.Fatalf("confirm: %v", err)
	}
	booked, err := f.service.CheckAvailability(context.Background(), provider, request.StartsAt.Add(time.Hour), 4*time.Hour)
	if err != nil {
		test.Fatalf("check booked: %v", err)
	}
	if booked.Available || booked.Reason != booking.AvailabilityReasonBooked {
		test.Fatalf("expected booked slot, got %+v", booked)
	}
	free, err := f.service.CheckAvailability(context.Background(), provider, reservation.EndsAt(), time.Hour)
	if err != nil {
		test.Fatalf("check free: %v", err)
	}
	if !free.Available {
		test.Fatalf("expected adjacent slot to be free, got %+v", free)
	}
}

func TestReviewIsUniquePerReservation(test *testing.T) {
	test.Parallel()
	f := newStoreFixture(test)
	client := mustUserID(test, "client-1")
	provider := mustUserID(test, "provider-1")
	request := f.mustRequest(test, client)
	quote := f.mustQuote(test, request.ID, provider)
	reservation, err := f.service.AcceptQuote(context.Background(), client, quote.ID)
	if err != nil {
		test.Fatalf("accept: %v", err)
	}
	for _, status := range []booking.ReservationStatus{booking.ReservationStatusConfirmed, booking.ReservationStatusInProgress, booking.ReservationStatusCompleted} {
		if _, err := f.service.UpdateReservationStatus(context.Background(), provider, reservation.ID, status); err != nil {
			test.Fatalf("move to %s: %v", status, err)
		}
	}
	input := booking.ReviewInput{ReservationID: reservation.ID, ClientID: client, Rating: 4, Comment: "Très pro"}
	if _, err := f.service.SubmitReview(context.Background(), input); err != nil {
		test.Fatalf("review: %v", err)
	}
	if _, err := f.service.SubmitReview(context.Background(), input); !errors.Is(err, booking.ErrReviewExists) {
		test.Fatalf("expected ErrReviewExists, got %v", err)
	}
}

func TestPaymentStatusUpdateIsConditional(test *testing.T) {
	test.Parallel()
	f := newStoreFixture(test)
	client := mustUserID(test, "client-1")
	request := f.mustRequest(test, client)
	quote := f.mustQuote(test, request.ID, mustUserID(test, "provider-1"))
	reservation, err := f.service.AcceptQuote(context.Background(), client, quote.ID)
	if err != nil {
		test.Fatalf("accept: %v", err)
	}
	if err := f.store.UpdatePaymentStatus(context.Background(), reservation.ID, booking.PaymentStatusPending, booking.PaymentStatusPaid, "cs_1"); err != nil {
		test.Fatalf("update payment: %v", err)
	}
	err = f.store.UpdatePaymentStatus(context.Background(), reservation.ID, booking.PaymentStatusPending, booking.PaymentStatusPaid, "cs_1")
	if !errors.Is(err, booking.ErrStatusConflict) {
		test.Fatalf("expected ErrStatusConflict, got %v", err)
	}
	loaded, err := f.store.GetReservation(context.Background(), reservation.ID)
	if err != nil {
		test.Fatalf("get reservation: %v", err)
	}
	if loaded.PaymentStatus != booking.PaymentStatusPaid || loaded.PaymentSessionID != "cs_1" {
		test.Fatalf("unexpected payment state: %+v", loaded)
	}
}

func TestNotificationStore(test *testing.T) {
	test.Parallel()
	database := openTestDatabase(test)
	store := NewNotificationStore(database)
	user := mustUserID(test, "client-1")
	counter := 0
	dispatcher, err := notify.NewDispatcher(store, zap.NewNop(),
		notify.WithClock(func() time.Time {
			counter++
			return storeTestNow.Add(time.Duration(counter) * time.Minute)
		}))
	if err != nil {
		test.Fatalf("dispatcher: %v", err)
	}
	if err := dispatcher.RegisterDevice(context.Background(), user, "tok-1", "android"); err != nil {
		test.Fatalf("register: %v", err)
	}
	if err := dispatcher.RegisterDevice(context.Background(), user, "tok-1", "ios"); err != nil {
		test.Fatalf("re-register: %v", err)
	}
	tokens, err := store.ListDeviceTokens(context.Background(), user)
	if err != nil || len(tokens) != 1 || tokens[0] != "tok-1" {
		test.Fatalf("expected one token, got %v (%v)", tokens, err)
	}

	dispatcher.Notify(context.Background(), booking.Event{Type: booking.EventQuoteRead, Recipients: []booking.UserID{user}})
	dispatcher.Notify(context.Background(), booking.Event{
		Type:       booking.EventNewQuote,
		Recipients: []booking.UserID{user},
		Data:       map[string]string{booking.EventKeyAmountCents: "5000"},
	})
	listed, err := dispatcher.ListNotifications(context.Background(), user, 10)
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(listed) != 2 || listed[0].Type != booking.EventNewQuote || listed[0].Data[booking.EventKeyAmountCents] != "5000" {
		test.Fatalf("expected newest first, got %+v", listed)
	}
	if err := dispatcher.MarkNotificationRead(context.Background(), user, listed[0].ID); err != nil {
		test.Fatalf("mark read: %v", err)
	}
	if err := dispatcher.MarkNotificationRead(context.Background(), mustUserID(test, "other"), listed[0].ID); !errors.Is(err, notify.ErrNotificationNotFound) {
		test.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
	reloaded, err := store.ListNotifications(context.Background(), user, 10)
	if err != nil {
		test.Fatalf("reload: %v", err)
	}
	if reloaded[0].ReadAt == nil || reloaded[1].ReadAt != nil {
		test.Fatalf("expected only the newest to be read, got %+v", reloaded)
	}
}
