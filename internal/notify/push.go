package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
)

// PushMessage is one push for one device token.
type PushMessage struct {
	To    string
	Title string
	Body  string
	Data  map[string]string
}

// ExpoPusher delivers push messages through the Expo push service.
type ExpoPusher struct {
	client *expo.PushClient
}

// NewExpoPusher builds a pusher for the push service at host. accessToken is
// optional. The SDK takes no context, so client carries the deadline; a nil
// client gets one bounded by defaultPushTimeout.
func NewExpoPusher(host string, accessToken string, client *http.Client) (*ExpoPusher, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return nil, fmt.Errorf("%w: push host is empty", ErrInvalidConfig)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultPushTimeout}
	}
	return &ExpoPusher{client: expo.NewPushClient(&expo.ClientConfig{
		Host:        host,
		AccessToken: strings.TrimSpace(accessToken),
		HTTPClient:  client,
	})}, nil
}

// Push sends one message. Tokens that are not Expo push tokens are rejected
// without a network call.
func (pusher *ExpoPusher) Push(ctx context.Context, message PushMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	token, err := expo.NewExponentPushToken(message.To)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDeviceToken, err)
	}
	response, err := pusher.client.Publish(&expo.PushMessage{
		To:       []expo.ExponentPushToken{token},
		Title:    message.Title,
		Body:     message.Body,
		Data:     message.Data,
		Sound:    "default",
		Priority: expo.DefaultPriority,
	})
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	if err := response.ValidateResponse(); err != nil {
		return fmt.Errorf("push rejected: %w", err)
	}
	return nil
}
