package ads

import "time"

// WithinAttributionWindow reports whether an interaction at occurredAt can
// still be attributed at now, given the window for its type.
func WithinAttributionWindow(occurredAt, now time.Time, window time.Duration) bool {
	if occurredAt.After(now) {
		return false
	}
	return now.Sub(occurredAt) <= window
}

// AttributeConversion picks the touchpoint a conversion at now credits to:
// the most recent click within the click-through window wins over the
// impression within the view-through window. Returns the winning event type
// and false if neither window covers the conversion.
func AttributeConversion(impressionAt time.Time, lastClickAt *time.Time, now time.Time) (EventType, bool) {
	if lastClickAt != nil && WithinAttributionWindow(*lastClickAt, now, ClickAttributionWindow) {
		return EventClick, true
	}
	if WithinAttributionWindow(impressionAt, now, ViewAttributionWindow) {
		return EventViewable, true
	}
	return "", false
}
