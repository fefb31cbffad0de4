package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func snapshotWithItem(quantity int64, label string) Snapshot {
	return Snapshot{
		SubscriptionID: "sub_123",
		CustomerEmail:  "user@example.com",
		Status:         StatusActive,
		Items: []LineItem{
			{Quantity: quantity, PriceID: "price_123", PriceLabel: label},
		},
		EventID: "evt_123",
		EventAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestResolve_TrialMarkerWinsOverQuantity(t *testing.T) {
	snap := snapshotWithItem(50, "Scale Plan")
	snap.Metadata = map[string]string{MetadataTrialType: "14d"}

	resolved := Resolve(snap)

	assert.Equal(t, 1, resolved.MaxBots)
	assert.Equal(t, TierTrial, resolved.Tier)
}

func TestResolve_TrialTierTag(t *testing.T) {
	snap := snapshotWithItem(10, "Startup Plan")
	snap.Metadata = map[string]string{MetadataTier: "Trial"}

	resolved := Resolve(snap)

	assert.Equal(t, 1, resolved.MaxBots)
	assert.Equal(t, TierTrial, resolved.Tier)
}

func TestResolve_OverrideWinsOverQuantity(t *testing.T) {
	snap := snapshotWithItem(3, "Startup Plan")
	snap.Metadata = map[string]string{MetadataMaxBots: "7"}

	resolved := Resolve(snap)

	assert.Equal(t, 7, resolved.MaxBots)
}

func TestResolve_InvalidOverrideFallsThrough(t *testing.T) {
	for _, override := range []string{"zero", "-2", "0", "", "  "} {
		snap := snapshotWithItem(3, "Startup Plan")
		snap.Metadata = map[string]string{MetadataMaxBots: override}

		resolved := Resolve(snap)

		assert.Equal(t, 3, resolved.MaxBots, "override %q should fall through to quantity", override)
	}
}

func TestResolve_LineItemQuantity(t *testing.T) {
	resolved := Resolve(snapshotWithItem(12, "Custom Plan"))

	assert.Equal(t, 12, resolved.MaxBots)
}

func TestResolve_LabelHeuristicFloor(t *testing.T) {
	resolved := Resolve(snapshotWithItem(0, "Startup Plan"))

	assert.GreaterOrEqual(t, resolved.MaxBots, 5)
	assert.Equal(t, "startup", resolved.Tier)
}

func TestResolve_LabelHeuristicCaseInsensitive(t *testing.T) {
	resolved := Resolve(snapshotWithItem(0, "SCALE plan (annual)"))

	assert.Equal(t, 20, resolved.MaxBots)
}

func TestResolve_DefaultFloor(t *testing.T) {
	resolved := Resolve(snapshotWithItem(0, "Mystery Plan"))

	assert.Equal(t, 1, resolved.MaxBots)
}

func TestResolve_NoItems(t *testing.T) {
	snap := Snapshot{
		SubscriptionID: "sub_123",
		Status:         StatusActive,
	}

	resolved := Resolve(snap)

	assert.Equal(t, 1, resolved.MaxBots)
}

func TestResolve_CancellationIntentPreserved(t *testing.T) {
	periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	snap := snapshotWithItem(5, "Startup Plan")
	snap.CancelAtPeriodEnd = true
	snap.PeriodEnd = periodEnd

	resolved := Resolve(snap)

	// Entitlement stays in force through the paid period.
	assert.Equal(t, 5, resolved.MaxBots)
	assert.Equal(t, StatusCanceling, resolved.Status)
	assert.True(t, resolved.CancelAtPeriodEnd)
	assert.Equal(t, periodEnd, resolved.PeriodEnd)
}

func TestResolve_CanceledStatusPassesThrough(t *testing.T) {
	snap := snapshotWithItem(5, "Startup Plan")
	snap.Status = StatusCanceled

	resolved := Resolve(snap)

	assert.Equal(t, StatusCanceled, resolved.Status)
}

func TestResolve_Deterministic(t *testing.T) {
	snap := snapshotWithItem(0, "Startup Plan")
	snap.Metadata = map[string]string{MetadataTier: "startup"}

	first := Resolve(snap)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Resolve(snap))
	}
}
