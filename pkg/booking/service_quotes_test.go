package booking

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateQuoteTotalFloorsAtZero(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name     string
		base     AmountCents
		travel   AmountCents
		options  []QuoteOption
		discount AmountCents
		want     AmountCents
	}{
		{name: "sum of lines", base: 50000, travel: 3000, options: []QuoteOption{{Name: "album", Price: 12000}}, discount: 5000, want: 60000},
		{name: "discount above lines", base: 500, travel: 50, options: []QuoteOption{{Name: "tirage", Price: 100}}, discount: 700, want: 0},
		{name: "no options", base: 1000, want: 1000},
	}
	for _, testCase := range testCases {
		if got := CalculateQuoteTotal(testCase.base, testCase.travel, testCase.options, testCase.discount); got != testCase.want {
			test.Fatalf("%s: expected %d, got %d", testCase.name, testCase.want, got)
		}
	}
}

func TestCreateQuoteReconcilesCounterWithInterestedSet(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	client := mustUserID(test, "client-1")
	first := mustUserID(test, "provider-1")
	second := mustUserID(test, "provider-2")
	request := f.mustRequest(test, client)

	quote := f.mustQuote(test, request.ID, first, 50000)
	f.mustQuote(test, request.ID, second, 60000)

	if quote.Status != QuoteStatusSent {
		test.Fatalf("expected sent quote, got %s", quote.Status)
	}
	if !quote.ExpiresAt.Equal(testNow.AddDate(0, 0, DefaultQuoteValidityDays)) {
		test.Fatalf("unexpected quote expiry %s", quote.ExpiresAt)
	}
	stored := f.store.requests[request.ID]
	if stored.QuotesReceived != 2 || len(stored.InterestedProviders) != 2 {
		test.Fatalf("expected counter and set of 2, got %d and %v", stored.QuotesReceived, stored.InterestedProviders)
	}

	if _, err := f.service.CreateQuote(context.Background(), QuoteInput{ProviderID: first, RequestID: request.ID, BaseRate: 1}); !errors.Is(err, ErrQuoteExists) {
		test.Fatalf("expected ErrQuoteExists, got %v", err)
	}
	if err := f.service.RefuseQuote(context.Background(), client, quote.ID); err != nil {
		test.Fatalf("refuse: %v", err)
	}
	f.mustQuote(test, request.ID, first, 45000)
	stored = f.store.requests[request.ID]
	if stored.QuotesReceived != len(stored.InterestedProviders) || stored.QuotesReceived != 2 {
		test.Fatalf("expected counter to stay at set size 2, got %d and %v", stored.QuotesReceived, stored.InterestedProviders)
	}

	newQuotes := f.notifier.ofType(EventNewQuote)
	if len(newQuotes) != 3 || newQuotes[0].Recipients[0] != client {
		test.Fatalf("expected three new quote events for the client, got %+v", newQuotes)
	}
}

func TestCreateQuoteRejectsClosedAndOwnRequests(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	client := mustUserID(test, "client-1")
	request := f.mustRequest(test, client)

	if _, err := f.service.CreateQuote(context.Background(), QuoteInput{ProviderID: client, RequestID: request.ID}); !errors.Is(err, ErrForbidden) {
		test.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.service.CancelRequest(context.Background(), client, request.ID); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	_, err := f.service.CreateQuote(context.Background(), QuoteInput{ProviderID: mustUserID(test, "provider-1"), RequestID: request.ID})
	if !errors.Is(err, ErrRequestClosed) {
		test.Fatalf("expected ErrRequestClosed, got %v", err)
	}
	if len(f.store.quotes) != 0 {
		test.Fatalf("expected no quote stored")
	}
}

func TestMarkQuoteReadOnlyFromSent(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	client := mustUserID(test, "client-1")
	request := f.mustRequest(test, client)
	quote := f.mustQuote(test, request.ID, mustUserID(test, "provider-1"), 50000)

	read, err := f.service.MarkQuoteRead(context.Background(), client, quote.ID)
	if err != nil {
		test.Fatalf("mark read: %v", err)
	}
	if read.Status != QuoteStatusRead || read.ReadAt == nil || !read.ReadAt.Equal(testNow) {
		test.Fatalf("expected read quote with timestamp, got %+v", read)
	}
	again, err := f.service.MarkQuoteRead(context.Background(), client, quote.ID)
	if err != nil {
		test.Fatalf("second mark read: %v", err)
	}
	if again.Status != QuoteStatusRead {
		test.Fatalf("expected read quote, got %s", again.Status)
	}
	if events := f.notifier.ofType(EventQuoteRead); len(events) != 1 {
		test.Fatalf("expected one read event, got %d", len(events))
	}

	if _, err := f.service.AcceptQuote(context.Background(), client, quote.ID); err != nil {
		test.Fatalf("accept: %v", err)
	}
	accepted, err := f.service.MarkQuoteRead(context.Background(), client, quote.ID)
	if err != nil {
		test.Fatalf("mark accepted read: %v", err)
	}
	if accepted.Status != QuoteStatusAccepted {
		test.Fatalf("expected accepted quote untouched, got %s", accepted.Status)
	}
}

func TestAcceptQuoteCascade(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	client := mustUserID(test, "client-1")
	providers := []UserID{mustUserID(test, "provider-1"), mustUserID(test, "provider-2"), mustUserID(test, "provider-3")}
	request := f.mustRequest(test, client)
	quotes := make([]Quote, 0, len(providers))
	for index, provider := range providers {
		quotes = append(quotes, f.mustQuote(test, request.ID, provider, AmountCents(40000+index*10000)))
	}
	if _, err := f.service.MarkQuoteRead(context.Background(), client, quotes[0].ID); err != nil {
		test.Fatalf("mark read: %v", err)
	}

	reservation, err := f.service.AcceptQuote(context.Background(), client, quotes[1].ID)
	if err != nil {
		test.Fatalf("accept: %v", err)
	}

	if reservation.Total != quotes[1].Total {
		test.Fatalf("expected reservation total %d, got %d", quotes[1].Total, reservation.Total)
	}
	if reservation.Status != ReservationStatusPendingPayment || reservation.PaymentStatus != PaymentStatusPending {
		test.Fatalf("unexpected reservation state: %+v", reservation)
	}
	if !reservation.StartsAt.Equal(request.StartsAt) || reservation.DurationMinutes != request.DurationMinutes {
		test.Fatalf("expected schedule copied from request, got %+v", reservation)
	}
	accepted := f.store.quotes[quotes[1].ID]
	if accepted.Status != QuoteStatusAccepted || accepted.ReservationID != reservation.ID {
		test.Fatalf("expected accepted quote linked to reservation, got %+v", accepted)
	}
	for _, index := range []int{0, 2} {
		if status := f.store.quotes[quotes[index].ID].Status; status != QuoteStatusRefused {
			test.Fatalf("expected sibling %d refused, got %s", index, status)
		}
	}
	if status := f.store.requests[request.ID].Status; status != RequestStatusFilled {
		test.Fatalf("expected filled request, got %s", status)
	}
	if len(f.notifier.ofType(EventQuoteAccepted)) != 1 || len(f.notifier.ofType(EventQuoteRefused)) != 2 || len(f.notifier.ofType(EventRequestFilled)) != 1 {
		test.Fatalf("unexpected cascade events: %+v", f.notifier.events)
	}
}

func TestAcceptQuoteRejectsNonLiveQuotes(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		prepare func(test *testing.T, f fixture, client UserID, quote Quote)
	}{
		{name: "already accepted", prepare: func(test *testing.T, f fixture, client UserID, quote Quote) {
			if _, err := f.service.AcceptQuote(context.Background(), client, quote.ID); err != nil {
				test.Fatalf("first accept: %v", err)
			}
		}},
		{name: "refused", prepare: func(test *testing.T, f fixture, client UserID, quote Quote) {
			if err := f.service.RefuseQuote(context.Background(), client, quote.ID); err != nil {
				test.Fatalf("refuse: %v", err)
			}
		}},
		{name: "validity elapsed", prepare: func(test *testing.T, f fixture, client UserID, quote Quote) {
			f.advance(8 * 24 * time.Hour)
		}},
		{name: "swept expired", prepare: func(test *testing.T, f fixture, client UserID, quote Quote) {
			f.advance(8 * 24 * time.Hour)
			if _, err := f.service.SweepExpired(context.Background()); err != nil {
				test.Fatalf("sweep: %v", err)
			}
		}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			f := newFixture(test)
			client := mustUserID(test, "client-1")
			request := f.mustRequest(test, client)
			quote := f.mustQuote(test, request.ID, mustUserID(test, "provider-1"), 50000)
			testCase.prepare(test, f, client, quote)
			reservationsBefore := len(f.store.reservations)
			statusBefore := f.store.quotes[quote.ID].Status

			_, err := f.service.AcceptQuote(context.Background(), client, quote.ID)
			if !errors.Is(err, ErrQuoteNotAcceptable) {
				test.Fatalf("expected ErrQuoteNotAcceptable, got %v", err)
			}
			if len(f.store.reservations) != reservationsBefore {
				test.Fatalf("expected no new reservation")
			}
			if status := f.store.quotes[quote.ID].Status; status != statusBefore {
				test.Fatalf("expected quote status %s to be unchanged, got %s", statusBefore, status)
			}
		})
	}
}

func TestAcceptQuoteRollsBackOnFailure(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	client := mustUserID(test, "client-1")
	request := f.mustRequest(test, client)
	quote := f.mustQuote(test, request.ID, mustUserID(test, "provider-1"), 50000)
	sibling := f.mustQuote(test, request.ID, mustUserID(test, "provider-2"), 55000)
	f.store.failOn["RefuseSiblingQuotes"] = errors.New("connection reset")
	eventsBefore := len(f.notifier.events)

	if _, err := f.service.AcceptQuote(context.Background(), client, quote.ID); err == nil {
		test.Fatalf("expected accept to fail")
	}
	if len(f.store.reservations) != 0 {
		test.Fatalf("expected reservation rolled back")
	}
	if status := f.store.quotes[quote.ID].Status; status != QuoteStatusSent {
		test.Fatalf("expected quote rolled back to sent, got %s", status)
	}
	if status := f.store.quotes[sibling.ID].Status; status != QuoteStatusSent {
		test.Fatalf("expected sibling untouched, got %s", status)
	}
	if status := f.store.requests[request.ID].Status; status != RequestStatusOpen {
		test.Fatalf("expected request still open, got %s", status)
	}
	if len(f.notifier.events) != eventsBefore {
		test.Fatalf("expected no events after a rolled back accept")
	}
}

func TestAcceptQuoteRequiresRequestOwner(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	request := f.mustRequest(test, mustUserID(test, "client-1"))
	quote := f.mustQuote(test, request.ID, mustUserID(test, "provider-1"), 50000)

	if _, err := f.service.AcceptQuote(context.Background(), mustUserID(test, "client-2"), quote.ID); !errors.Is(err, ErrForbidden) {
		test.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRefuseQuote(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	client := mustUserID(test, "client-1")
	request := f.mustRequest(test, client)
	refused := f.mustQuote(test, request.ID, mustUserID(test, "provider-1"), 50000)
	accepted := f.mustQuote(test, request.ID, mustUserID(test, "provider-2"), 60000)

	if err := f.service.RefuseQuote(context.Background(), client, refused.ID); err != nil {
		test.Fatalf("refuse: %v", err)
	}
	if err := f.service.RefuseQuote(context.Background(), client, refused.ID); err != nil {
		test.Fatalf("second refuse should be a no-op, got %v", err)
	}
	if events := f.notifier.ofType(EventQuoteRefused); len(events) != 1 {
		test.Fatalf("expected a single refusal event, got %d", len(events))
	}
	if _, err := f.service.AcceptQuote(context.Background(), client, accepted.ID); err != nil {
		test.Fatalf("accept: %v", err)
	}
	if err := f.service.RefuseQuote(context.Background(), client, accepted.ID); !errors.Is(err, ErrQuoteNotRefusable) {
		test.Fatalf("expected ErrQuoteNotRefusable, got %v", err)
	}
	if status := f.store.quotes[accepted.ID].Status; status != QuoteStatusAccepted {
		test.Fatalf("expected accepted quote to stay accepted, got %s", status)
	}
}
