package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeplus-io/tp-monitor-engine/pkg/models"
)

func TestPublishSlack(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher := NewHTTPPublisher(5*time.Second, Restrictions{})
	dest := &models.Destination{
		ID:   "d1",
		Name: "ops",
		Type: models.DestinationTypeSlack,
		URL:  server.URL,
	}

	messageID, err := publisher.Publish(context.Background(), dest, "subject", "it is on fire")
	require.NoError(t, err)
	assert.NotEmpty(t, messageID)
	assert.Equal(t, "it is on fire", received["text"])
}

func TestPublishCustomWebhookCarriesSubject(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		assert.Equal(t, "token-1", r.Header.Get("X-Auth"))
	}))
	defer server.Close()

	publisher := NewHTTPPublisher(5*time.Second, Restrictions{})
	dest := &models.Destination{
		ID:      "d1",
		Type:    models.DestinationTypeCustomWebhook,
		URL:     server.URL,
		Headers: map[string]string{"X-Auth": "token-1"},
	}

	_, err := publisher.Publish(context.Background(), dest, "disk full", "details")
	require.NoError(t, err)
	assert.Equal(t, "disk full", received["subject"])
	assert.Equal(t, "details", received["message"])
}

func TestPublishRejectsDeniedHost(t *testing.T) {
	publisher := NewHTTPPublisher(time.Second, Restrictions{
		DeniedHosts: []string{"127.0.0.1"},
	})
	dest := &models.Destination{
		ID:   "d1",
		Type: models.DestinationTypeSlack,
		URL:  "http://127.0.0.1:9999/hook",
	}

	_, err := publisher.Publish(context.Background(), dest, "s", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestPublishRejectsDisallowedType(t *testing.T) {
	publisher := NewHTTPPublisher(time.Second, Restrictions{
		AllowedTypes: []models.DestinationType{models.DestinationTypeChime},
	})
	dest := &models.Destination{ID: "d1", Type: models.DestinationTypeSlack, URL: "http://example.com"}

	_, err := publisher.Publish(context.Background(), dest, "s", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestPublishRestrictionsCanBeReplaced(t *testing.T) {
	publisher := NewHTTPPublisher(time.Second, Restrictions{
		AllowedTypes: []models.DestinationType{models.DestinationTypeChime},
	})
	dest := &models.Destination{ID: "d1", Type: models.DestinationTypeTest}

	_, err := publisher.Publish(context.Background(), dest, "s", "m")
	require.Error(t, err)

	publisher.SetRestrictions(Restrictions{})
	_, err = publisher.Publish(context.Background(), dest, "s", "m")
	assert.NoError(t, err)
}

func TestPublishTestDestinationIsNoOp(t *testing.T) {
	publisher := NewHTTPPublisher(time.Second, Restrictions{})
	dest := &models.Destination{ID: "d1", Name: "smoke", Type: models.DestinationTypeTest}

	messageID, err := publisher.Publish(context.Background(), dest, "s", "m")
	require.NoError(t, err)
	assert.NotEmpty(t, messageID)
}

func TestPublishUnsupportedTransports(t *testing.T) {
	publisher := NewHTTPPublisher(time.Second, Restrictions{
		AllowedTypes: []models.DestinationType{models.DestinationTypeEmail, models.DestinationTypeSNS},
	})

	for _, destType := range []models.DestinationType{models.DestinationTypeEmail, models.DestinationTypeSNS} {
		dest := &models.Destination{ID: "d1", Type: destType}
		_, err := publisher.Publish(context.Background(), dest, "s", "m")
		assert.Error(t, err)
	}
}

func TestPublishNon2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	publisher := NewHTTPPublisher(time.Second, Restrictions{})
	dest := &models.Destination{ID: "d1", Type: models.DestinationTypeChime, URL: server.URL}

	_, err := publisher.Publish(context.Background(), dest, "s", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
