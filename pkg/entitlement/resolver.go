package entitlement

import (
	"strconv"
	"strings"
)

// TierFloor binds a recognized tier label to its minimum bot count.
// The table is exported so the label heuristic stays testable as data
// rather than inline string comparisons.
type TierFloor struct {
	Label string
	Floor int
}

// TierFloors is the label heuristic table, matched case-insensitively as a
// substring of the first line item's price label.
var TierFloors = []TierFloor{
	{Label: "solo", Floor: 1},
	{Label: "startup", Floor: 5},
	{Label: "scale", Floor: 20},
}

// Resolve derives the entitlement from a subscription snapshot. It is a
// pure, total function: no I/O, no clock, no hidden state.
//
// Precedence, first match wins:
//  1. Trial marker: metadata trial_type set, or tier metadata equal to the
//     reserved trial tag. Bot count is 1 regardless of quantities.
//  2. Explicit override: metadata max_bots parsed as a positive integer.
//     Invalid values fall through.
//  3. First line-item quantity, when > 0.
//  4. Label heuristic: max of the matched tier floor and the quantity.
//  5. Floor of 1.
func Resolve(snap Snapshot) Resolved {
	out := Resolved{
		MaxBots:           1,
		Tier:              snapshotTier(snap),
		Status:            snapshotStatus(snap),
		PeriodEnd:         snap.PeriodEnd,
		CancelAtPeriodEnd: snap.CancelAtPeriodEnd,
	}

	if isTrial(snap) {
		out.MaxBots = 1
		out.Tier = TierTrial
		return out
	}

	if override, ok := parseOverride(snap.Metadata[MetadataMaxBots]); ok {
		out.MaxBots = override
		return out
	}

	var first LineItem
	if len(snap.Items) > 0 {
		first = snap.Items[0]
	}

	if first.Quantity > 0 {
		out.MaxBots = int(first.Quantity)
		return out
	}

	if floor, label, ok := matchTierFloor(first.PriceLabel); ok {
		bots := floor
		if int(first.Quantity) > bots {
			bots = int(first.Quantity)
		}
		out.MaxBots = bots
		if out.Tier == "" {
			out.Tier = label
		}
		return out
	}

	return out
}

func isTrial(snap Snapshot) bool {
	if snap.Metadata == nil {
		return false
	}
	if strings.TrimSpace(snap.Metadata[MetadataTrialType]) != "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(snap.Metadata[MetadataTier]), TierTrial)
}

// parseOverride parses an explicit bot-count override. Zero, negative, or
// unparseable values are treated as absent.
func parseOverride(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func matchTierFloor(label string) (floor int, tier string, ok bool) {
	label = strings.ToLower(label)
	if label == "" {
		return 0, "", false
	}
	for _, tf := range TierFloors {
		if strings.Contains(label, tf.Label) {
			return tf.Floor, tf.Label, true
		}
	}
	return 0, "", false
}

func snapshotTier(snap Snapshot) string {
	if snap.Metadata != nil {
		if tier := strings.TrimSpace(snap.Metadata[MetadataTier]); tier != "" {
			return tier
		}
	}
	if len(snap.Items) > 0 {
		if _, label, ok := matchTierFloor(snap.Items[0].PriceLabel); ok {
			return label
		}
	}
	return "custom"
}

// snapshotStatus copies the provider status, folding the
// cancel-at-period-end flag into a distinct status so the caller can see
// cancellation intent without revoking anything before period end.
func snapshotStatus(snap Snapshot) string {
	if snap.CancelAtPeriodEnd && snap.Status == StatusActive {
		return StatusCanceling
	}
	return snap.Status
}
