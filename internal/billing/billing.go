// Package billing sells the Premium plan through Stripe Checkout and applies the
// upgrade when Stripe confirms payment.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/model"
)

const eventCheckoutCompleted = "checkout.session.completed"

var (
	ErrNotConfigured = errors.New("billing: not configured")
	ErrSignature     = errors.New("billing: webhook signature verification failed")
)

type Upgrader interface {
	Upgrade(ctx context.Context, userID string) (model.User, error)
}

type Options struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	FrontendURL   string
	Upgrader      Upgrader
	Logger        *slog.Logger
}

type Service struct {
	webhookSecret string
	priceID       string
	frontendURL   string
	upgrader      Upgrader
	logger        *slog.Logger

	newSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func New(opts Options) *Service {
	if opts.SecretKey != "" {
		stripe.Key = opts.SecretKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		webhookSecret: opts.WebhookSecret,
		priceID:       opts.PriceID,
		frontendURL:   strings.TrimRight(opts.FrontendURL, "/"),
		upgrader:      opts.Upgrader,
		logger:        logger,
		newSession:    session.New,
	}
}

// Checkout starts a one-off payment for the Premium plan and returns the hosted page URL.
func (s *Service) Checkout(ctx context.Context, user model.User) (string, error) {
	if user.Premium() {
		return "", apperror.Conflict("Your account is already Premium.")
	}
	if s.priceID == "" || s.frontendURL == "" {
		return "", ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(user.ID),
		CustomerEmail:     stripe.String(user.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.frontendURL + "/billing/success"),
		CancelURL:  stripe.String(s.frontendURL + "/billing/cancel"),
	}
	params.Context = ctx

	sess, err := s.newSession(params)
	if err != nil {
		return "", fmt.Errorf("billing: creating checkout session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies a Stripe event and upgrades the paying account.
// Events other than a completed, paid checkout are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSignature, err)
	}

	if event.Type != eventCheckoutCompleted {
		s.logger.Debug("ignoring stripe event", "type", string(event.Type), "id", event.ID)
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return apperror.ValidationFailed("payload", "invalid session payload")
	}
	if sess.ClientReferenceID == "" {
		return apperror.ValidationFailed("client_reference_id", "missing user reference")
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logger.Info("checkout completed without payment", "session", sess.ID, "status", string(sess.PaymentStatus))
		return nil
	}

	if _, err := s.upgrader.Upgrade(ctx, sess.ClientReferenceID); err != nil {
		return fmt.Errorf("billing: upgrading %s: %w", sess.ClientReferenceID, err)
	}
	s.logger.Info("premium purchased", "userID", sess.ClientReferenceID, "session", sess.ID)
	return nil
}
