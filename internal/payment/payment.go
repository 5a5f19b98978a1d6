// Package payment resolves Stripe checkout sessions.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.uber.org/zap"
)

const (
	defaultTimeout        = 10 * time.Second
	metadataReservationID = "reservation_id"
)

var (
	ErrInvalidConfig = errors.New("invalid payment config")

	sessionIDPattern = regexp.MustCompile(`^cs_[A-Za-z0-9_]+$`)
)

// Client looks up checkout sessions through stripe-go.
type Client struct {
	sessions session.Client
}

// NewClient builds a Client authenticated with secretKey. baseURL overrides
// the Stripe API host when set. The SDK does not retry; failed webhooks are
// redelivered by Stripe.
func NewClient(baseURL string, secretKey string, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, fmt.Errorf("%w: secret key is empty", ErrInvalidConfig)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	backendConfig := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     logger.Named("stripe").Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
			return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, baseURL)
		}
		backendConfig.URL = stripe.String(baseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)
	return &Client{sessions: session.Client{B: backend, Key: secretKey}}, nil
}

// LookupSession implements booking.PaymentLookup. Ids that cannot be Stripe
// checkout session ids are rejected without calling the provider.
func (client *Client) LookupSession(ctx context.Context, sessionID string) (booking.PaymentSession, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return booking.PaymentSession{}, fmt.Errorf("%w: malformed session id", booking.ErrPaymentSessionNotFound)
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	checkoutSession, err := client.sessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && (stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing) {
			return booking.PaymentSession{}, fmt.Errorf("%w: %s", booking.ErrPaymentSessionNotFound, sessionID)
		}
		return booking.PaymentSession{}, fmt.Errorf("%w: %w", booking.ErrPaymentUnavailable, err)
	}
	reservationID, err := booking.NewReservationID(checkoutSession.Metadata[metadataReservationID])
	if err != nil {
		return booking.PaymentSession{}, fmt.Errorf("%w: session %s carries no reservation", booking.ErrPaymentSessionNotFound, sessionID)
	}
	amount, err := booking.NewAmountCents(checkoutSession.AmountTotal)
	if err != nil {
		return booking.PaymentSession{}, err
	}
	return booking.PaymentSession{
		SessionID:     checkoutSession.ID,
		ReservationID: reservationID,
		Status:        mapStatus(checkoutSession),
		Amount:        amount,
	}, nil
}

func mapStatus(checkoutSession *stripe.CheckoutSession) booking.PaymentStatus {
	switch {
	case checkoutSession.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return booking.PaymentStatusPaid
	case checkoutSession.Status == stripe.CheckoutSessionStatusExpired:
		return booking.PaymentStatusFailed
	}
	return booking.PaymentStatusPending
}
