package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type Message struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	AnalyticsLabel string `json:"analytics"`
}

// Notifier delivers a message to a user. Delivery is best effort: failures are
// logged and never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, uid string, msg Message)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, Message) {}

// Sender is the part of *messaging.Client the notifier needs.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier looks up the user's FCM token on their profile and sends
// through Firebase Cloud Messaging.
type PushNotifier struct {
	sender Sender
	store  store.Store
	logger *logging.Logger
}

func NewPushNotifier(ctx context.Context, credentialsFile string, s store.Store, logger *logging.Logger) (*PushNotifier, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("error starting firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting firebase messaging: %w", err)
	}
	return NewPushNotifierWithSender(client, s, logger), nil
}

func NewPushNotifierWithSender(sender Sender, s store.Store, logger *logging.Logger) *PushNotifier {
	return &PushNotifier{sender: sender, store: s, logger: logger}
}

func (p *PushNotifier) Notify(ctx context.Context, uid string, msg Message) {
	log := p.logger.WithFields(logrus.Fields{"user": uid, "title": msg.Title})

	var profile auth.Profile
	found, err := p.store.Get(ctx, auth.ProfilePath(uid), &profile)
	if err != nil {
		log.WithError(err).Warn("push skipped, profile unreadable")
		return
	}
	if !found || profile.FCMToken == "" {
		log.Debug("push skipped, no device token")
		return
	}

	id, err := p.sender.Send(ctx, buildMessage(profile.FCMToken, msg))
	if err != nil {
		log.WithError(err).Warn("push failed")
		return
	}
	log.WithField("message_id", id).Debug("push sent")
}

func buildMessage(token string, msg Message) *messaging.Message {
	badge := 1
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: msg.Title,
						Body:  msg.Body,
					},
					Badge: &badge,
					Sound: "default",
				},
			},
			FCMOptions: &messaging.APNSFCMOptions{
				AnalyticsLabel: msg.AnalyticsLabel,
			},
		},
	}
}
