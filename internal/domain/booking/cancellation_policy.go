package booking

import (
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/shared/money"
)

// PolicyType is the cancellation tier snapshotted onto a booking at creation,
// so later property edits never change an existing booking's terms.
type PolicyType string

const (
	PolicyFlexible    PolicyType = "FLEXIBLE"
	PolicyModerate    PolicyType = "MODERATE"
	PolicyStrict      PolicyType = "STRICT"
	PolicySuperStrict PolicyType = "SUPER_STRICT"
)

var ErrUnknownPolicy = errors.New("booking: unknown cancellation policy")

// PolicyDetails is one row of the static policy reference table.
type PolicyDetails struct {
	DeadlineDays  int
	RefundPercent int
}

var policyTable = map[PolicyType]PolicyDetails{
	PolicyFlexible:    {DeadlineDays: 1, RefundPercent: 100},
	PolicyModerate:    {DeadlineDays: 5, RefundPercent: 100},
	PolicyStrict:      {DeadlineDays: 7, RefundPercent: 50},
	PolicySuperStrict: {DeadlineDays: 30, RefundPercent: 0},
}

// ParsePolicyType normalizes an external policy name.
func ParsePolicyType(raw string) (PolicyType, error) {
	p := PolicyType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := policyTable[p]; !ok {
		return "", ErrUnknownPolicy
	}
	return p, nil
}

// Details returns the table row for the policy.
func (p PolicyType) Details() (PolicyDetails, bool) {
	d, ok := policyTable[p]
	return d, ok
}

// PolicyTable returns a copy of the reference table.
func PolicyTable() map[PolicyType]PolicyDetails {
	out := make(map[PolicyType]PolicyDetails, len(policyTable))
	for k, v := range policyTable {
		out[k] = v
	}
	return out
}

// RefundPercentage maps a policy and a cancellation instant to the refund the
// guest is entitled to. The entitlement is a single cliff edge: the full table
// percentage when the cancellation lands at least DeadlineDays whole days
// before check-in, zero after. A check-in already in the past yields zero.
// Unknown policies refund nothing rather than failing.
func RefundPercentage(policy PolicyType, checkIn, cancelAt time.Time) int {
	details, ok := policyTable[policy]
	if !ok {
		return 0
	}
	daysUntilCheckIn := int(checkIn.Sub(cancelAt).Hours() / 24)
	if daysUntilCheckIn >= details.DeadlineDays {
		return details.RefundPercent
	}
	return 0
}

// RefundAmount applies RefundPercentage to the booking total.
func RefundAmount(policy PolicyType, total money.Money, checkIn, cancelAt time.Time) (money.Money, int) {
	percent := RefundPercentage(policy, checkIn, cancelAt)
	return total.Percent(percent), percent
}
