package notifications

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/angelmondragon/marketplace-backend/internal/pricing"
	"github.com/angelmondragon/marketplace-backend/pkg/mailer"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

func orderConfirmationMessage(email string, event payloads.OrderConfirmationRequestedEvent) mailer.Message {
	return mailer.Message{
		To:      email,
		Subject: "Order status update",
		Body:    fmt.Sprintf("Order for %s placed. Your order number is #%d.", pricing.FormatAmount(event.TotalSum), event.OrderID),
	}
}

func orderStateMessage(email string, event payloads.OrderStateChangedEvent) mailer.Message {
	return mailer.Message{
		To:      email,
		Subject: "Order status update",
		Body:    fmt.Sprintf("Order #%d is now %s.", event.OrderID, event.State),
	}
}

func registrationMessage(baseURL string, event payloads.UserRegisteredEvent) mailer.Message {
	q := url.Values{}
	q.Set("token", event.Token)
	q.Set("email", event.Email)
	return mailer.Message{
		To:      event.Email,
		Subject: fmt.Sprintf("Confirm registration for %s", event.Email),
		Body:    link(baseURL, "/api/v1/user/register/confirm", q),
	}
}

func passwordResetMessage(baseURL string, event payloads.PasswordResetRequestedEvent) mailer.Message {
	q := url.Values{}
	q.Set("token", event.Token)
	return mailer.Message{
		To:      event.Email,
		Subject: strings.TrimSpace(fmt.Sprintf("Password reset token for %s %s", event.FirstName, event.LastName)),
		Body:    link(baseURL, "/api/v1/user/password_reset/confirm", q),
	}
}

func link(baseURL, path string, q url.Values) string {
	return strings.TrimRight(baseURL, "/") + path + "?" + q.Encode()
}
