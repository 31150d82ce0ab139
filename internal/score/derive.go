package score

// PaymentCounts tallies payments by lateness bucket.
type PaymentCounts struct {
	OnTime int `json:"onTime" yaml:"onTime"`
	Late30 int `json:"late30" yaml:"late30"`
	Late60 int `json:"late60" yaml:"late60"`
	Late90 int `json:"late90" yaml:"late90"`
}

// PaymentRatio is the on-time share of all payments. A consumer with no
// payments on record has a clean history and gets 1.
func PaymentRatio(c PaymentCounts) float64 {
	total := nonNeg(c.OnTime) + nonNeg(c.Late30) + nonNeg(c.Late60) + nonNeg(c.Late90)
	if total == 0 {
		return 1
	}
	return float64(nonNeg(c.OnTime)) / float64(total)
}

// Account is one revolving or installment credit line.
type Account struct {
	Name  string  `json:"name" yaml:"name"`
	Used  float64 `json:"used" yaml:"used"`
	Limit float64 `json:"limit" yaml:"limit"`
}

// Utilization is total balance over total limit across accounts. No
// available credit means nothing is in use, so the ratio is 0.
func Utilization(accounts []Account) float64 {
	var used, limit float64
	for _, a := range accounts {
		if a.Used > 0 {
			used += a.Used
		}
		if a.Limit > 0 {
			limit += a.Limit
		}
	}
	if limit == 0 {
		return 0
	}
	return clampUnit(used / limit)
}

func nonNeg(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
