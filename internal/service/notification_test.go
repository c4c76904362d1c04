package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	failWith  error
	delivered []*model.NotificationOutbox
}

func (n *recordingNotifier) NotifyAssignment(_ context.Context, msg *model.NotificationOutbox) error {
	if n.failWith != nil {
		return n.failWith
	}
	n.delivered = append(n.delivered, msg)
	return nil
}

func enqueueOutboxMessage(t *testing.T, outbox *fakeOutboxRepo) *model.NotificationOutbox {
	t.Helper()
	msg := &model.NotificationOutbox{
		OfficerID:         uuid.New(),
		ApplicationID:     uuid.New(),
		ApplicationNumber: "PMC-LIC-20250901-00042",
		Category:          model.CategoryArchitect,
		ApplicantName:     "Asha Kulkarni",
		AssignedBy:        "auto-assignment",
	}
	require.NoError(t, outbox.Enqueue(context.Background(), msg))
	return msg
}

func TestDispatchOnceMarksSent(t *testing.T) {
	outbox := &fakeOutboxRepo{}
	msg := enqueueOutboxMessage(t, outbox)

	notifier := &recordingNotifier{}
	dispatcher := NewOutboxDispatcher(outbox, notifier, 0)
	dispatcher.DispatchOnce(context.Background())

	require.Len(t, notifier.delivered, 1)
	assert.Equal(t, msg.ID, notifier.delivered[0].ID)
	assert.Equal(t, model.OutboxSent, msg.Status)
	assert.Equal(t, 1, msg.Attempts)
	assert.NotNil(t, msg.SentAt)
}

func TestDispatchOnceRetriesAfterFailure(t *testing.T) {
	outbox := &fakeOutboxRepo{}
	msg := enqueueOutboxMessage(t, outbox)

	notifier := &recordingNotifier{failWith: errors.New("hub unavailable")}
	dispatcher := NewOutboxDispatcher(outbox, notifier, 0)
	dispatcher.DispatchOnce(context.Background())

	assert.Equal(t, model.OutboxPending, msg.Status)
	assert.Equal(t, 1, msg.Attempts)
	assert.Equal(t, "hub unavailable", msg.LastError)

	// The message stays eligible and delivers once the sink recovers.
	notifier.failWith = nil
	dispatcher.DispatchOnce(context.Background())
	require.Len(t, notifier.delivered, 1)
	assert.Equal(t, model.OutboxSent, msg.Status)
}

func TestDispatchOnceGivesUpAtAttemptCap(t *testing.T) {
	outbox := &fakeOutboxRepo{}
	msg := enqueueOutboxMessage(t, outbox)

	notifier := &recordingNotifier{failWith: errors.New("hub unavailable")}
	dispatcher := NewOutboxDispatcher(outbox, notifier, 0)
	for i := 0; i < model.MaxOutboxAttempts; i++ {
		dispatcher.DispatchOnce(context.Background())
	}

	assert.Equal(t, model.OutboxFailed, msg.Status)
	assert.Equal(t, model.MaxOutboxAttempts, msg.Attempts)

	// A dead letter never comes back, even after the sink recovers.
	notifier.failWith = nil
	dispatcher.DispatchOnce(context.Background())
	assert.Empty(t, notifier.delivered)
}

func TestDispatchOncePreservesOtherMessagesOnFailure(t *testing.T) {
	outbox := &fakeOutboxRepo{}
	first := enqueueOutboxMessage(t, outbox)
	second := enqueueOutboxMessage(t, outbox)

	notifier := &recordingNotifier{}
	poisoned := first.ID
	selective := notifierFunc(func(ctx context.Context, msg *model.NotificationOutbox) error {
		if msg.ID == poisoned {
			return errors.New("serialization error")
		}
		return notifier.NotifyAssignment(ctx, msg)
	})

	dispatcher := NewOutboxDispatcher(outbox, selective, 0)
	dispatcher.DispatchOnce(context.Background())

	require.Len(t, notifier.delivered, 1)
	assert.Equal(t, second.ID, notifier.delivered[0].ID)
	assert.Equal(t, model.OutboxSent, second.Status)
	assert.Equal(t, model.OutboxPending, first.Status)
	assert.Equal(t, 1, first.Attempts)
}

type notifierFunc func(ctx context.Context, msg *model.NotificationOutbox) error

func (f notifierFunc) NotifyAssignment(ctx context.Context, msg *model.NotificationOutbox) error {
	return f(ctx, msg)
}
