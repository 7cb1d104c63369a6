package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/mailer"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Notifier turns decoded domain events into outgoing mail.
type Notifier struct {
	users   userLookup
	mail    mailer.Mailer
	baseURL string
	logg    *logger.Logger
}

// NewNotifier builds a notifier. baseURL prefixes confirmation and reset links.
func NewNotifier(users userLookup, mail mailer.Mailer, baseURL string, logg *logger.Logger) (*Notifier, error) {
	if users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	if mail == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("notify base url required")
	}
	return &Notifier{users: users, mail: mail, baseURL: baseURL, logg: logg}, nil
}

// Notify sends the mail for one event payload. Unknown payloads are ignored.
func (n *Notifier) Notify(ctx context.Context, payload any) error {
	switch event := payload.(type) {
	case *payloads.OrderConfirmationRequestedEvent:
		email, err := n.emailFor(ctx, event.UserID)
		if err != nil {
			return err
		}
		return n.mail.Send(ctx, orderConfirmationMessage(email, *event))
	case *payloads.OrderStateChangedEvent:
		email, err := n.emailFor(ctx, event.UserID)
		if err != nil {
			return err
		}
		return n.mail.Send(ctx, orderStateMessage(email, *event))
	case *payloads.UserRegisteredEvent:
		return n.mail.Send(ctx, registrationMessage(n.baseURL, *event))
	case *payloads.PasswordResetRequestedEvent:
		return n.mail.Send(ctx, passwordResetMessage(n.baseURL, *event))
	default:
		if n.logg != nil {
			n.logg.Info(n.logg.WithField(ctx, "payload_type", fmt.Sprintf("%T", payload)), "notification.unhandled_payload")
		}
		return nil
	}
}

func (n *Notifier) emailFor(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := n.users.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user %s: %w", userID, err)
	}
	return user.Email, nil
}
