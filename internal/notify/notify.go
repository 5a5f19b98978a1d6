// Package notify turns booking lifecycle events into in-app notifications
// and best-effort push messages.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/photobook/pkg/booking"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidDeviceToken   = errors.New("invalid device token")
	ErrInvalidConfig        = errors.New("invalid notify config")
)

const (
	defaultListLimit   = 50
	defaultPushTimeout = 5 * time.Second
)

// Notification is one in-app notification row.
type Notification struct {
	ID        string            `json:"id"`
	UserID    booking.UserID    `json:"-"`
	Type      booking.EventType `json:"type"`
	Title     string            `json:"titre"`
	Body      string            `json:"message"`
	Data      map[string]string `json:"donnees"`
	ReadAt    *time.Time        `json:"lu_le,omitempty"`
	CreatedAt time.Time         `json:"cree_le"`
}

// Device is a push token registered by a user.
type Device struct {
	Token    string
	UserID   booking.UserID
	Platform string
}

// Store persists notifications and device tokens.
type Store interface {
	InsertNotification(ctx context.Context, notification Notification) error
	ListNotifications(ctx context.Context, userID booking.UserID, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, userID booking.UserID, notificationID string, at time.Time) error
	SaveDevice(ctx context.Context, device Device) error
	ListDeviceTokens(ctx context.Context, userID booking.UserID) ([]string, error)
}

// Pusher delivers one push message to one device token.
type Pusher interface {
	Push(ctx context.Context, message PushMessage) error
}

// Dispatcher implements booking.EventNotifier.
type Dispatcher struct {
	store       Store
	pusher      Pusher
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
	pushTimeout time.Duration
	pushes      sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPusher enables push delivery. Without it only in-app rows are written.
func WithPusher(pusher Pusher) Option {
	return func(dispatcher *Dispatcher) {
		dispatcher.pusher = pusher
	}
}

// WithPushTimeout bounds each push delivery.
func WithPushTimeout(timeout time.Duration) Option {
	return func(dispatcher *Dispatcher) {
		if timeout > 0 {
			dispatcher.pushTimeout = timeout
		}
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(dispatcher *Dispatcher) {
		if now != nil {
			dispatcher.now = now
		}
	}
}

// WithIDGenerator overrides the id generator for notification rows.
func WithIDGenerator(generator func() string) Option {
	return func(dispatcher *Dispatcher) {
		if generator != nil {
			dispatcher.newID = generator
		}
	}
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(store Store, logger *zap.Logger, options ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := &Dispatcher{
		store:       store,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
		pushTimeout: defaultPushTimeout,
	}
	for _, option := range options {
		if option != nil {
			option(dispatcher)
		}
	}
	return dispatcher, nil
}

// Notify writes the in-app row of every recipient, then hands push delivery
// to a background goroutine. Rows are written even when the caller's context
// is already cancelled, and a failure for one recipient or one device never
// stops delivery to the others.
func (dispatcher *Dispatcher) Notify(ctx context.Context, event booking.Event) {
	ctx = context.WithoutCancel(ctx)
	title, body := render(event)
	for _, recipient := range event.Recipients {
		notification := Notification{
			ID:        dispatcher.newID(),
			UserID:    recipient,
			Type:      event.Type,
			Title:     title,
			Body:      body,
			Data:      copyData(event.Data),
			CreatedAt: dispatcher.now().UTC(),
		}
		if err := dispatcher.store.InsertNotification(ctx, notification); err != nil {
			dispatcher.logger.Error("notification insert failed",
				zap.String("user_id", recipient.String()),
				zap.String("type", string(event.Type)),
				zap.Error(err))
		}
	}
	if dispatcher.pusher == nil {
		return
	}
	recipients := append([]booking.UserID(nil), event.Recipients...)
	payload := copyData(event.Data)
	payload["type"] = string(event.Type)
	dispatcher.pushes.Add(1)
	go func() {
		defer dispatcher.pushes.Done()
		for _, recipient := range recipients {
			dispatcher.push(ctx, recipient, event.Type, title, body, payload)
		}
	}()
}

// Wait blocks until every push started by Notify has finished.
func (dispatcher *Dispatcher) Wait() {
	dispatcher.pushes.Wait()
}

func (dispatcher *Dispatcher) push(ctx context.Context, recipient booking.UserID, eventType booking.EventType, title string, body string, payload map[string]string) {
	tokens, err := dispatcher.store.ListDeviceTokens(ctx, recipient)
	if err != nil {
		dispatcher.logger.Warn("device lookup failed", zap.String("user_id", recipient.String()), zap.Error(err))
		return
	}
	for _, token := range tokens {
		message := PushMessage{To: token, Title: title, Body: body, Data: payload}
		pushCtx, cancel := context.WithTimeout(ctx, dispatcher.pushTimeout)
		err := dispatcher.pusher.Push(pushCtx, message)
		cancel()
		if err != nil {
			dispatcher.logger.Warn("push failed",
				zap.String("user_id", recipient.String()),
				zap.String("type", string(eventType)),
				zap.Error(err))
		}
	}
}

// ListNotifications returns the newest notifications of a user.
func (dispatcher *Dispatcher) ListNotifications(ctx context.Context, userID booking.UserID, limit int) ([]Notification, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return dispatcher.store.ListNotifications(ctx, userID, limit)
}

// MarkNotificationRead stamps a notification as read.
func (dispatcher *Dispatcher) MarkNotificationRead(ctx context.Context, userID booking.UserID, notificationID string) error {
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return ErrNotificationNotFound
	}
	return dispatcher.store.MarkNotificationRead(ctx, userID, notificationID, dispatcher.now().UTC())
}

// RegisterDevice stores a push token for a user. Registering a known token
// moves it to the new user.
func (dispatcher *Dispatcher) RegisterDevice(ctx context.Context, userID booking.UserID, token string, platform string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidDeviceToken)
	}
	return dispatcher.store.SaveDevice(ctx, Device{Token: token, UserID: userID, Platform: strings.TrimSpace(platform)})
}

func copyData(data map[string]string) map[string]string {
	copied := make(map[string]string, len(data)+1)
	for key, value := range data {
		copied[key] = value
	}
	return copied
}
