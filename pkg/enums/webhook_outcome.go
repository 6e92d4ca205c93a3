package enums

// WebhookOutcome reports how a gateway event was handled. Every outcome is
// acknowledged with 200; only errors make the gateway retry.
type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
	WebhookOutcomeNotFound  WebhookOutcome = "not_found"
)

// String implements fmt.Stringer.
func (o WebhookOutcome) String() string {
	return string(o)
}
