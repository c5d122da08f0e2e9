package notification

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/SwiftFiat/taskmarket-ledger/db/store"
	"github.com/SwiftFiat/taskmarket-ledger/internal/auth"
	"github.com/SwiftFiat/taskmarket-ledger/services/monitoring/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []*messaging.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.sent = append(r.sent, m)
	return "projects/p/messages/1", nil
}

func TestPushNotifier_SendsToProfileToken(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, auth.ProfilePath("u1"), auth.Profile{Name: "Ada", FCMToken: "tok-1"}))

	sender := &recordingSender{}
	n := NewPushNotifierWithSender(sender, s, logging.NewDiscardLogger())
	n.Notify(ctx, "u1", Message{Title: "Work approved", Body: "You earned 50"})

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "tok-1", sender.sent[0].Token)
	assert.Equal(t, "Work approved", sender.sent[0].Notification.Title)
	assert.Equal(t, "You earned 50", sender.sent[0].APNS.Payload.Aps.Alert.Body)
}

func TestPushNotifier_SkipsWithoutToken(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, auth.ProfilePath("u1"), auth.Profile{Name: "Ada"}))

	sender := &recordingSender{}
	n := NewPushNotifierWithSender(sender, s, logging.NewDiscardLogger())
	n.Notify(ctx, "u1", Message{Title: "t"})
	n.Notify(ctx, "ghost", Message{Title: "t"})

	assert.Empty(t, sender.sent)
}

func TestPushNotifier_SendFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, auth.ProfilePath("u1"), auth.Profile{FCMToken: "tok-1"}))

	n := NewPushNotifierWithSender(&recordingSender{err: errors.New("unavailable")}, s, logging.NewDiscardLogger())
	assert.NotPanics(t, func() { n.Notify(ctx, "u1", Message{Title: "t"}) })
}
