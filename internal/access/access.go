// Package access holds the single paid-access policy. Every gated path must
// call HasAccess rather than reimplementing the check inline.
package access

import (
	"time"

	"github.com/qrvivo/qrvivo/internal/model"
)

// HasAccess reports whether the subscription currently grants paid access.
func HasAccess(sub *model.Subscription) bool {
	return HasAccessAt(sub, time.Now())
}

// HasAccessAt is HasAccess evaluated at an arbitrary instant.
//
// The policy is deliberately permissive: a stored period end strictly in the
// future grants access on its own, even when the status already reads
// "canceled"; and an "active" or "trialing" status grants access even without
// a stored period end. Anything else (including "past_due" and "incomplete")
// grants nothing.
func HasAccessAt(sub *model.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	if sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now) {
		return true
	}
	return sub.Status == "active" || sub.Status == "trialing"
}
