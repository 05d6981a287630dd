package notification

import (
	"context"
	"fmt"
	"log"

	"billpay/internal/domain/plaidsync"
	"billpay/internal/shared/messages"
)

// SyncNotifier pushes link/sync lifecycle events to the user's devices.
// Best effort: failures are logged and never surfaced to the sync.
type SyncNotifier struct {
	svc  *Service
	msgs *messages.Messages
}

func NewSyncNotifier(svc *Service, msgs *messages.Messages) *SyncNotifier {
	return &SyncNotifier{svc: svc, msgs: msgs}
}

func (n *SyncNotifier) SyncCompleted(ctx context.Context, userID int64, summary *plaidsync.SyncSummary) {
	text := n.msgs.SyncComplete
	body := text.Body
	if summary != nil && summary.Transactions != nil {
		refreshed := summary.Transactions.Created + summary.Transactions.Updated
		if refreshed > 0 {
			body = fmt.Sprintf("%s %d transactions refreshed.", text.Body, refreshed)
		}
	}

	if err := n.svc.SendToUser(ctx, userID, text.Title, body, CategoryAccounts, nil); err != nil {
		log.Printf("sync notification failed for user %d: %v", userID, err)
	}

	// Silent trigger so an open app reloads without an OS notification.
	if err := n.svc.SendSilentToUser(ctx, userID, map[string]string{"event": "sync_complete"}); err != nil {
		log.Printf("silent refresh failed for user %d: %v", userID, err)
	}
}

func (n *SyncNotifier) RelinkRequired(ctx context.Context, userID int64) {
	text := n.msgs.RelinkRequired
	data := map[string]string{"action": "relink"}
	if err := n.svc.SendToUser(ctx, userID, text.Title, text.Body, CategoryAccounts, data); err != nil {
		log.Printf("relink notification failed for user %d: %v", userID, err)
	}
}

var _ plaidsync.Notifier = (*SyncNotifier)(nil)
