package webhook

import (
	"encoding/json"
)

// payload is what completion needs from the provider's raw event object:
// a Stripe checkout session or a PayPal capture response.
type payload struct {
	Email      string
	PaymentRef string
}

func parsePayload(raw json.RawMessage) payload {
	var v struct {
		CustomerEmail   string `json:"customer_email"`
		CustomerDetails *struct {
			Email string `json:"email"`
		} `json:"customer_details"`
		PaymentIntent json.RawMessage `json:"payment_intent"`

		Payer *struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments *struct {
				Captures []struct {
					ID string `json:"id"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}

	if len(raw) == 0 {
		return payload{}
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return payload{}
	}

	var p payload

	switch {
	case v.CustomerDetails != nil && v.CustomerDetails.Email != "":
		p.Email = v.CustomerDetails.Email
	case v.CustomerEmail != "":
		p.Email = v.CustomerEmail
	case v.Payer != nil:
		p.Email = v.Payer.EmailAddress
	}

	// payment_intent is an id, or the whole object when expanded.
	if len(v.PaymentIntent) > 0 {
		var id string
		if err := json.Unmarshal(v.PaymentIntent, &id); err == nil {
			p.PaymentRef = id
		} else {
			var obj struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(v.PaymentIntent, &obj); err == nil {
				p.PaymentRef = obj.ID
			}
		}
	}

	if p.PaymentRef == "" {
		for _, pu := range v.PurchaseUnits {
			if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
				p.PaymentRef = pu.Payments.Captures[0].ID
				break
			}
		}
	}

	return p
}
