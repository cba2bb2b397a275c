package plan

import (
	"time"

	"github.com/rafaelbst/agendly/internal/model"
)

type Tier string

const (
	TierFree      Tier = "free"
	TierUnlimited Tier = "unlimited"
)

// FreeMonthlyLimit is the number of confirmed appointments a free-tier
// provider may accumulate per calendar month.
const FreeMonthlyLimit = 10

// Resolve maps a subscription record to the effective plan tier. It is total
// and side-effect free: a missing record, an unsubscribed record, or an
// expired subscription all degrade to the free tier.
func Resolve(sub *model.Subscription, now time.Time) Tier {
	if sub == nil || !sub.Subscribed {
		return TierFree
	}
	if sub.SubscriptionEnd != nil && !sub.SubscriptionEnd.After(now) {
		return TierFree
	}
	return TierUnlimited
}
