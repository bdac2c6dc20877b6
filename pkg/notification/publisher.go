// Package notification dispatches rendered action messages to destinations.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
)

// Publisher delivers one message to one destination and returns a
// provider-assigned message ID.
type Publisher interface {
	Publish(ctx context.Context, dest *models.Destination, subject, message string) (string, error)
}

// payloadBuilder renders the request body for one destination type. The
// table below is the closed set of supported types; adding a type means
// adding an entry here.
type payloadBuilder func(dest *models.Destination, subject, message string) ([]byte, string, error)

var payloadBuilders = map[models.DestinationType]payloadBuilder{
	models.DestinationTypeChime:         chimePayload,
	models.DestinationTypeSlack:         slackPayload,
	models.DestinationTypeCustomWebhook: webhookPayload,
}

func chimePayload(_ *models.Destination, _ string, message string) ([]byte, string, error) {
	body, err := json.Marshal(map[string]string{"Content": message})
	return body, "application/json", err
}

func slackPayload(_ *models.Destination, _ string, message string) ([]byte, string, error) {
	body, err := json.Marshal(map[string]string{"text": message})
	return body, "application/json", err
}

func webhookPayload(_ *models.Destination, subject, message string) ([]byte, string, error) {
	body, err := json.Marshal(map[string]string{"subject": subject, "message": message})
	return body, "application/json", err
}

// Restrictions controls which destinations a publisher may talk to. Both
// lists are operator configuration; updates replace the whole snapshot so
// in-flight dispatches see a consistent view.
type Restrictions struct {
	// AllowedTypes is the destination-type allow-list. Empty means the
	// built-in default (every type with a payload builder, plus test).
	AllowedTypes []models.DestinationType
	// DeniedHosts are hostnames dispatch must never reach.
	DeniedHosts []string
}

// HTTPPublisher posts payloads to webhook-style destinations.
type HTTPPublisher struct {
	client *http.Client

	mu           sync.RWMutex
	restrictions Restrictions
}

// NewHTTPPublisher creates a publisher with the given per-dispatch timeout.
func NewHTTPPublisher(timeout time.Duration, restrictions Restrictions) *HTTPPublisher {
	return &HTTPPublisher{
		client:       &http.Client{Timeout: timeout},
		restrictions: restrictions,
	}
}

// SetRestrictions replaces the restriction snapshot.
func (p *HTTPPublisher) SetRestrictions(r Restrictions) {
	p.mu.Lock()
	p.restrictions = r
	p.mu.Unlock()
}

func (p *HTTPPublisher) snapshot() Restrictions {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.restrictions
}

func (p *HTTPPublisher) typeAllowed(t models.DestinationType, r Restrictions) bool {
	if len(r.AllowedTypes) == 0 {
		_, ok := payloadBuilders[t]
		return ok || t == models.DestinationTypeTest
	}
	for _, allowed := range r.AllowedTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// Publish delivers the message. Test destinations are a no-op; email and
// SNS are declared but have no transport wired and always fail.
func (p *HTTPPublisher) Publish(ctx context.Context, dest *models.Destination, subject, message string) (string, error) {
	restrictions := p.snapshot()

	if !p.typeAllowed(dest.Type, restrictions) {
		return "", fmt.Errorf("destination type %s is not allowed", dest.Type)
	}

	switch dest.Type {
	case models.DestinationTypeTest:
		logrus.Infof("Test destination %s: subject=%q message=%q", dest.Name, subject, message)
		return "test-" + uuid.New().String(), nil
	case models.DestinationTypeEmail, models.DestinationTypeSNS:
		return "", fmt.Errorf("destination type %s has no configured transport", dest.Type)
	}

	builder, ok := payloadBuilders[dest.Type]
	if !ok {
		return "", fmt.Errorf("unknown destination type %s", dest.Type)
	}

	parsed, err := url.Parse(dest.URL)
	if err != nil {
		return "", fmt.Errorf("destination %s has an invalid URL: %w", dest.Name, err)
	}
	for _, denied := range restrictions.DeniedHosts {
		if parsed.Hostname() == denied {
			return "", fmt.Errorf("destination host %s is denied", parsed.Hostname())
		}
	}

	body, contentType, err := builder(dest, subject, message)
	if err != nil {
		return "", fmt.Errorf("failed to build payload for destination %s: %w", dest.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request for destination %s: %w", dest.Name, err)
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range dest.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to deliver to destination %s: %w", dest.Name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("destination %s returned status %d", dest.Name, resp.StatusCode)
	}
	return uuid.New().String(), nil
}
