package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// WebhookAck is the acknowledgement body returned to the payment gateway.
type WebhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
	Event    string `json:"event,omitempty"`
}
