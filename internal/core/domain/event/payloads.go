package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// The provider wraps the changed object in data.object, mirroring the shape
// of Stripe-style event payloads.
type dataWrapper struct {
	Object json.RawMessage `json:"object"`
}

// SubscriptionObject is the subset of a provider subscription object the
// reconciler consumes. Price nickname and metadata are optional on the wire;
// absence is handled by the reconciler, not treated as a parse failure.
type SubscriptionObject struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"` // unix seconds
	Items            struct {
		Data []struct {
			Price struct {
				Nickname string            `json:"nickname"`
				Metadata map[string]string `json:"metadata"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// TierLabel extracts the tier label from the first subscription item, falling
// back to price metadata. Returns "" when neither is present.
func (s *SubscriptionObject) TierLabel() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	price := s.Items.Data[0].Price
	if price.Nickname != "" {
		return price.Nickname
	}
	return price.Metadata["tier"]
}

// PeriodEnd converts the provider's unix timestamp; zero time when unset.
func (s *SubscriptionObject) PeriodEnd() time.Time {
	if s.CurrentPeriodEnd == 0 {
		return time.Time{}
	}
	return time.Unix(s.CurrentPeriodEnd, 0).UTC()
}

// PaymentIntentObject is the subset of a provider payment intent the ledger
// consumes.
type PaymentIntentObject struct {
	ID       string  `json:"id"`
	Customer string  `json:"customer"`
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
	Invoice  *string `json:"invoice,omitempty"`
}

// CheckoutSessionObject is the subset of a completed checkout session the
// reconciler consumes to resolve the subscription that was purchased.
type CheckoutSessionObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Mode         string `json:"mode"`
}

// ParseSubscription decodes data.object as a subscription object.
func ParseSubscription(data json.RawMessage) (*SubscriptionObject, error) {
	obj, err := unwrap(data)
	if err != nil {
		return nil, err
	}
	var sub SubscriptionObject
	if err := json.Unmarshal(obj, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription object: %w", err)
	}
	return &sub, nil
}

// ParsePaymentIntent decodes data.object as a payment intent.
func ParsePaymentIntent(data json.RawMessage) (*PaymentIntentObject, error) {
	obj, err := unwrap(data)
	if err != nil {
		return nil, err
	}
	var pi PaymentIntentObject
	if err := json.Unmarshal(obj, &pi); err != nil {
		return nil, fmt.Errorf("failed to parse payment intent object: %w", err)
	}
	return &pi, nil
}

// ParseCheckoutSession decodes data.object as a checkout session.
func ParseCheckoutSession(data json.RawMessage) (*CheckoutSessionObject, error) {
	obj, err := unwrap(data)
	if err != nil {
		return nil, err
	}
	var cs CheckoutSessionObject
	if err := json.Unmarshal(obj, &cs); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session object: %w", err)
	}
	return &cs, nil
}

func unwrap(data json.RawMessage) (json.RawMessage, error) {
	var w dataWrapper
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse event data: %w", err)
	}
	if len(w.Object) == 0 {
		return nil, fmt.Errorf("event data has no object")
	}
	return w.Object, nil
}
