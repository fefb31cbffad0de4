package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/botquota/pkg/entitlement"
)

func TestParseEvent_Valid(t *testing.T) {
	body := []byte(`{
		"id": "evt_1",
		"type": "subscription.created",
		"created": 1700000000,
		"data": {
			"subscription": {
				"id": "sub_1",
				"customer_email": "founder@example.com",
				"status": "active",
				"items": [{"quantity": 5, "price_id": "price_1", "price_label": "Startup Plan"}],
				"metadata": {"tier": "startup"},
				"cancel_at_period_end": false,
				"current_period_end": 1702592000
			}
		}
	}`)

	event, err := parseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventSubscriptionCreated, event.Type)

	snap, err := event.snapshot()
	require.NoError(t, err)
	assert.Equal(t, "sub_1", snap.SubscriptionID)
	assert.Equal(t, "founder@example.com", snap.CustomerEmail)
	assert.Equal(t, entitlement.StatusActive, snap.Status)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(5), snap.Items[0].Quantity)
	assert.Equal(t, "Startup Plan", snap.Items[0].PriceLabel)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), snap.EventAt)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), snap.PeriodEnd)
}

func TestParseEvent_UnknownEnvelopeFieldRejected(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"subscription.created","created":1,"data":{"subscription":{}},"surprise":true}`)
	_, err := parseEvent(body)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseEvent_TrailingObjectRejected(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"subscription.created","created":1,"data":{"subscription":{}}}{"id":"evt_2"}`)
	_, err := parseEvent(body)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseEvent_MissingTypeRejected(t *testing.T) {
	body := []byte(`{"id":"evt_1","created":1,"data":{"subscription":{}}}`)
	_, err := parseEvent(body)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseEvent_NotJSON(t *testing.T) {
	_, err := parseEvent([]byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSnapshot_ExtraSubscriptionFieldsTolerated(t *testing.T) {
	body := []byte(`{
		"id": "evt_1",
		"type": "subscription.updated",
		"created": 1700000000,
		"data": {
			"subscription": {
				"id": "sub_1",
				"customer_email": "founder@example.com",
				"status": "active",
				"billing_anchor": "month_start",
				"discounts": []
			}
		}
	}`)

	event, err := parseEvent(body)
	require.NoError(t, err)
	snap, err := event.snapshot()
	require.NoError(t, err)
	assert.Equal(t, "founder@example.com", snap.CustomerEmail)
}

func TestSnapshot_MissingSubscription(t *testing.T) {
	event, err := parseEvent([]byte(`{"id":"evt_1","type":"subscription.created","created":1,"data":{}}`))
	require.NoError(t, err)
	_, err = event.snapshot()
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSnapshot_MissingEmail(t *testing.T) {
	event, err := parseEvent([]byte(`{"id":"evt_1","type":"subscription.created","created":1,"data":{"subscription":{"id":"sub_1","status":"active"}}}`))
	require.NoError(t, err)
	_, err = event.snapshot()
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSnapshot_EndedEventForcesCanceled(t *testing.T) {
	body := []byte(`{
		"id": "evt_1",
		"type": "subscription.ended",
		"created": 1700000000,
		"data": {
			"subscription": {
				"id": "sub_1",
				"customer_email": "founder@example.com",
				"status": "active"
			}
		}
	}`)

	event, err := parseEvent(body)
	require.NoError(t, err)
	snap, err := event.snapshot()
	require.NoError(t, err)
	assert.Equal(t, entitlement.StatusCanceled, snap.Status)
}
