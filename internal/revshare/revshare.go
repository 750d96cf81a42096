package revshare

import (
	"errors"

	"satstall/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInconsistentShares means the configured recipient shares add up to more
// than the order total. Callers must reject the configuration before invoice
// generation; Split still returns a pro-rata capped result for display.
var ErrInconsistentShares = errors.New("recipient shares exceed order total")

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

// Share is one recipient's resolved payout in sats.
type Share struct {
	RecipientPubkey string
	DisplayName     string
	AmountSats      int64
}

// Normalize maps a raw percentage string onto a fraction in [0,1]. Values
// greater than 1 are read as whole percents, everything else as a fraction
// already. Malformed or negative input normalizes to zero.
func Normalize(raw string) decimal.Decimal {
	p, err := decimal.NewFromString(raw)
	if err != nil || p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(one) {
		p = p.Div(hundred)
	}
	if p.GreaterThan(one) {
		return one
	}
	return p
}

// Split resolves recipient percentages against totalSats. Zero-percentage
// recipients are excluded; every nonzero share floors to at least 1 sat. The
// second return is the merchant remainder. If the shares would exceed the
// total they are capped pro-rata and ErrInconsistentShares is returned
// alongside the capped result.
func Split(totalSats int64, recipients []models.RevenueShareRecipient) ([]Share, int64, error) {
	if totalSats < 0 {
		totalSats = 0
	}
	total := decimal.NewFromInt(totalSats)

	var shares []Share
	var sum int64
	for _, r := range recipients {
		pct := Normalize(r.Percentage)
		if pct.IsZero() {
			continue
		}
		amount := total.Mul(pct).Floor().IntPart()
		if amount < 1 {
			amount = 1
		}
		shares = append(shares, Share{
			RecipientPubkey: r.RecipientPubkey,
			DisplayName:     r.DisplayName,
			AmountSats:      amount,
		})
		sum += amount
	}

	if sum > totalSats {
		capped := capProRata(shares, sum, totalSats)
		var cappedSum int64
		for _, s := range capped {
			cappedSum += s.AmountSats
		}
		return capped, totalSats - cappedSum, ErrInconsistentShares
	}
	return shares, totalSats - sum, nil
}

// capProRata scales every share by totalSats/sum with floor rounding, which
// guarantees the capped sum never exceeds totalSats. Shares that scale to
// zero are dropped; the data is already inconsistent at this point.
func capProRata(shares []Share, sum, totalSats int64) []Share {
	out := make([]Share, 0, len(shares))
	for _, s := range shares {
		scaled := s.AmountSats * totalSats / sum
		if scaled < 1 {
			continue
		}
		s.AmountSats = scaled
		out = append(out, s)
	}
	return out
}
