package models

import "fmt"

// DestinationType is the closed set of notification channel kinds.
type DestinationType string

const (
	DestinationTypeChime         DestinationType = "chime"
	DestinationTypeSlack         DestinationType = "slack"
	DestinationTypeCustomWebhook DestinationType = "custom_webhook"
	DestinationTypeEmail         DestinationType = "email"
	DestinationTypeSNS           DestinationType = "sns"
	DestinationTypeTest          DestinationType = "test"
)

// Destination is a resolved notification endpoint.
type Destination struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Type    DestinationType   `json:"type"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ParseDestinationType validates a stored destination type tag.
func ParseDestinationType(s string) (DestinationType, error) {
	switch t := DestinationType(s); t {
	case DestinationTypeChime, DestinationTypeSlack, DestinationTypeCustomWebhook,
		DestinationTypeEmail, DestinationTypeSNS, DestinationTypeTest:
		return t, nil
	default:
		return "", fmt.Errorf("unknown destination type %q", s)
	}
}
