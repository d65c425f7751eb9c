package worker

import "math"

const (
	platformFeeRate      = 0.05
	platformFeeFixed     = 0.35
	internationalFeeRate = 0.015
)

// Fees is the surcharge added on top of the credited amount when charging the
// card on file.
type Fees struct {
	Platform      float64 `json:"platform"`
	International float64 `json:"international"`
	Total         float64 `json:"total"`
}

// CalculateFees computes the processing fees for one top-up: a percentage plus
// a fixed platform fee, and an extra surcharge for non-domestic cards. Values
// are rounded to cents.
func CalculateFees(creditAmount float64, internationalCard bool) Fees {
	fees := Fees{
		Platform: roundCents(creditAmount*platformFeeRate + platformFeeFixed),
	}
	if internationalCard {
		fees.International = roundCents(creditAmount * internationalFeeRate)
	}
	fees.Total = roundCents(fees.Platform + fees.International)
	return fees
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
