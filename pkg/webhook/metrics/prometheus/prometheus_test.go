package prommetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPrometheusMetrics_NewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestPrometheusMetrics_RecordWebhookEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookEvent("subscription.created", "success")
	metrics.RecordWebhookEvent("subscription.updated", "discarded")
	metrics.RecordWebhookEvent("subscription.created", "success")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var events *dto.MetricFamily
	for _, m := range families {
		if m.GetName() == "test_webhook_events_total" {
			events = m
			break
		}
	}
	if events == nil {
		t.Fatal("Expected to find webhook event metric")
	}
	if len(events.Metric) != 2 {
		t.Errorf("Expected 2 time series, got %d", len(events.Metric))
	}
}

func TestPrometheusMetrics_RecordWebhookError(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookError("auth_failed")
	metrics.RecordWebhookError("auth_failed")
	metrics.RecordWebhookError("invalid_payload")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var errs *dto.MetricFamily
	for _, m := range families {
		if m.GetName() == "test_webhook_errors_total" {
			errs = m
			break
		}
	}
	if errs == nil {
		t.Fatal("Expected to find webhook error metric")
	}
	for _, m := range errs.Metric {
		for _, label := range m.Label {
			if label.GetName() == "error_type" && label.GetValue() == "auth_failed" {
				if m.GetCounter().GetValue() != 2 {
					t.Errorf("Expected 2 auth failures, got %v", m.GetCounter().GetValue())
				}
			}
		}
	}
}

func TestPrometheusMetrics_RecordProcessingDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookProcessingDuration("subscription.created", 12*time.Millisecond)
	metrics.RecordWebhookProcessingDuration("subscription.created", 30*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var duration *dto.MetricFamily
	for _, m := range families {
		if m.GetName() == "test_webhook_processing_duration_seconds" {
			duration = m
			break
		}
	}
	if duration == nil {
		t.Fatal("Expected to find duration metric")
	}
	if got := duration.Metric[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("Expected 2 observations, got %d", got)
	}
}

func TestPrometheusMetrics_RecordEntitlementChange(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordEntitlementChange("", "startup")
	metrics.RecordEntitlementChange("startup", "scale")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var changes *dto.MetricFamily
	for _, m := range families {
		if m.GetName() == "test_entitlement_tier_changes_total" {
			changes = m
			break
		}
	}
	if changes == nil {
		t.Fatal("Expected to find tier change metric")
	}
	if len(changes.Metric) != 2 {
		t.Errorf("Expected 2 time series, got %d", len(changes.Metric))
	}
}

func TestPrometheusMetrics_DefaultMetrics(t *testing.T) {
	metrics := DefaultMetrics("test_wh_default")

	if metrics == nil {
		t.Fatal("DefaultMetrics returned nil")
	}
	metrics.RecordWebhookEvent("subscription.created", "success")
}
