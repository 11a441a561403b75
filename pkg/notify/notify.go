// Package notify sends FCM push notifications. All sends are best-effort:
// failures are logged, never propagated into the calling flow.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"

	"github.com/memora-app/memora/pkg/models"
)

// LowCreditThreshold is the balance at or below which a purchase nudge is
// sent after a finalize debit.
const LowCreditThreshold = 5

const sendTimeout = 10 * time.Second

// Notifier sends push notifications to user devices. A nil Notifier is a
// valid no-op, used when Firebase is not configured.
type Notifier struct {
	client *messaging.Client
}

// NewNotifier creates a notifier from an initialized Firebase app.
func NewNotifier(ctx context.Context, app *firebase.App) (*Notifier, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &Notifier{client: client}, nil
}

type localized struct {
	sessionReadyTitle string
	sessionReadyBody  string
	lowCreditsTitle   string
	lowCreditsBody    string
}

var notificationText = map[string]localized{
	"pt": {
		sessionReadyTitle: "Sessão pronta",
		sessionReadyBody:  "Sua sessão foi processada e está pronta para revisão.",
		lowCreditsTitle:   "Créditos acabando",
		lowCreditsBody:    "Você tem %d créditos restantes. Recarregue para continuar processando sessões.",
	},
	"en": {
		sessionReadyTitle: "Session ready",
		sessionReadyBody:  "Your session has been processed and is ready to review.",
		lowCreditsTitle:   "Credits running low",
		lowCreditsBody:    "You have %d credits left. Top up to keep processing sessions.",
	},
}

func textFor(lang string) localized {
	if t, ok := notificationText[lang]; ok {
		return t
	}
	return notificationText["pt"]
}

func (n *Notifier) send(ctx context.Context, token string, title, body string, data map[string]string) {
	if n == nil || n.client == nil || token == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := n.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		slog.Warn("Failed to send push notification", "title", title, "error", err)
	}
}

// SessionReady notifies the user that their session finished processing.
func (n *Notifier) SessionReady(ctx context.Context, user *models.User, session *models.Session) {
	if user.FCMToken == nil {
		return
	}
	t := textFor(user.PreferredLanguage)
	body := t.sessionReadyBody
	if session.SuggestedTitle != nil && *session.SuggestedTitle != "" {
		body = *session.SuggestedTitle
	}
	n.send(ctx, *user.FCMToken, t.sessionReadyTitle, body, map[string]string{
		"type":       "session_ready",
		"session_id": session.ID.String(),
	})
}

// LowCredits nudges the user to top up when the balance is at or below the
// threshold. Callers check the threshold; this sends unconditionally.
func (n *Notifier) LowCredits(ctx context.Context, user *models.User, balance int) {
	if user.FCMToken == nil {
		return
	}
	t := textFor(user.PreferredLanguage)
	n.send(ctx, *user.FCMToken, t.lowCreditsTitle,
		fmt.Sprintf(t.lowCreditsBody, balance), map[string]string{
			"type": "low_credits",
		})
}
