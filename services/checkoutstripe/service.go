package checkoutstripe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/services/basket"
)

const (
	eventSessionCompleted             = "checkout.session.completed"
	eventSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

type service struct {
	logger        mylog.Logger
	webhookSecret string
	recorder      PaymentRecorder
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(webhookSecret string, logger mylog.Logger, recorder PaymentRecorder) (*service, error) {
	if webhookSecret == "" {
		return nil, fmt.Errorf("missing stripe webhook secret")
	}
	return &service{
		logger:        logger,
		webhookSecret: webhookSecret,
		recorder:      recorder,
	}, nil
}

// webhookNotification verifies a signed stripe event and closes the basket of a paid checkout session.
// Events that do not complete a payment are acknowledged and ignored.
func (s *service) webhookNotification(c context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return myerrors.NewAuthenticationError(fmt.Errorf("error verifying stripe signature: %s", err))
	}

	eventType := string(event.Type)
	if eventType != eventSessionCompleted && eventType != eventSessionAsyncPaymentSucceeded {
		s.logger.Log(c, event.ID, mylog.SeverityDebug, "Ignore stripe event %s of type %s", event.ID, eventType)
		return nil
	}
	if event.Data == nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("stripe event %s without data", event.ID))
	}

	session := stripe.CheckoutSession{}
	err = json.Unmarshal(event.Data.Raw, &session)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error parsing checkout session of event %s: %s", event.ID, err))
	}
	if session.ClientReferenceID == "" {
		return myerrors.NewInvalidInputError(fmt.Errorf("checkout session %s has no client reference", session.ID))
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.logger.Log(c, session.ClientReferenceID, mylog.SeverityInfo, "Checkout session %s not paid yet (%s)", session.ID, session.PaymentStatus)
		return nil
	}

	paymentID := ""
	if session.PaymentIntent != nil {
		paymentID = session.PaymentIntent.ID
	}

	s.logger.Log(c, session.ClientReferenceID, mylog.SeverityInfo, "Stripe payment %s received for session %s", paymentID, session.ID)

	err = s.recorder.RecordPayment(c, session.ClientReferenceID, session.ID, paymentID)
	if err != nil {
		if failure, ok := basket.AsFailure(err); ok {
			// redelivery of an already processed session or a tampered one: retrying will not help
			s.logger.Log(c, session.ClientReferenceID, mylog.SeverityWarn, "Stripe session %s not recorded: %s", session.ID, failure.Message)
			return nil
		}
		return err
	}

	return nil
}
