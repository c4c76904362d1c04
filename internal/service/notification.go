package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/repository"
	ws "github.com/yashturmbekar/PMCRMS-sub002/internal/websocket"
)

// Notifier delivers one assignment notification. Implementations are best
// effort: a returned error only delays redelivery, it never propagates to
// the assignment that produced the message.
type Notifier interface {
	NotifyAssignment(ctx context.Context, msg *model.NotificationOutbox) error
}

// AssignmentEvent is the websocket payload pushed to connected officers.
type AssignmentEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// hubNotifier broadcasts assignment events over the websocket hub.
type hubNotifier struct {
	hub *ws.Hub
}

func NewHubNotifier(hub *ws.Hub) Notifier {
	return &hubNotifier{hub: hub}
}

func (n *hubNotifier) NotifyAssignment(ctx context.Context, msg *model.NotificationOutbox) error {
	event := AssignmentEvent{
		Event: "application_assigned",
		Data: map[string]interface{}{
			"officer_id":         msg.OfficerID.String(),
			"application_id":     msg.ApplicationID.String(),
			"application_number": msg.ApplicationNumber,
			"category":           msg.Category,
			"applicant_name":     msg.ApplicantName,
			"assigned_by":        msg.AssignedBy,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case n.hub.Broadcast <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OutboxDispatcher is the worker half of the notification outbox:
// assignments enqueue inside their transaction, the dispatcher delivers
// afterwards with its own retry budget and failure isolation.
type OutboxDispatcher struct {
	outbox   repository.OutboxRepository
	notifier Notifier
	interval time.Duration
	batch    int
}

func NewOutboxDispatcher(outbox repository.OutboxRepository, notifier Notifier, interval time.Duration) *OutboxDispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDispatcher{
		outbox:   outbox,
		notifier: notifier,
		interval: interval,
		batch:    50,
	}
}

// Run polls for pending notifications until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchOnce(ctx)
		}
	}
}

// DispatchOnce works through one batch of pending messages. Exposed so
// tests and shutdown paths can drain synchronously.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) {
	msgs, err := d.outbox.FetchPending(ctx, d.batch)
	if err != nil {
		log.Printf("WARNING: outbox fetch failed: %v", err)
		return
	}

	for i := range msgs {
		msg := &msgs[i]
		if err := d.notifier.NotifyAssignment(ctx, msg); err != nil {
			log.Printf("WARNING: notification for %s to officer %s failed (attempt %d): %v",
				msg.ApplicationNumber, msg.OfficerID, msg.Attempts+1, err)
			if markErr := d.outbox.MarkFailed(ctx, msg, err.Error()); markErr != nil {
				log.Printf("WARNING: failed to mark outbox row %s: %v", msg.ID, markErr)
			}
			continue
		}
		if err := d.outbox.MarkSent(ctx, msg); err != nil {
			log.Printf("WARNING: failed to mark outbox row %s sent: %v", msg.ID, err)
		}
	}
}
