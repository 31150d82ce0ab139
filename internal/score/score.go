// Package score implements the LotiCredit credit score engine.
//
// A score is a weighted blend of five normalized behavior factors mapped
// onto the 300-850 range and classified into a rating band. Evaluation is
// pure: the same Factors always produce the same Result, and an Engine is
// safe for concurrent use without locking.
package score

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNonFiniteFactor = errors.New("factor must be a finite number")
)

// Score range bounds.
const (
	MinScore = 300
	MaxScore = 850
)

// Factors are the inputs to one evaluation.
type Factors struct {
	PaymentHistoryRatio float64 `json:"paymentHistoryRatio" yaml:"paymentHistoryRatio"`
	UtilizationRatio    float64 `json:"utilizationRatio" yaml:"utilizationRatio"`
	HistoryLengthYears  float64 `json:"historyLengthYears" yaml:"historyLengthYears"`
	CreditMixScore      float64 `json:"creditMixScore" yaml:"creditMixScore"`
	RecentInquiries     int     `json:"recentInquiries" yaml:"recentInquiries"`
}

// Validate reports the first non-finite factor. Out-of-range finite values
// are accepted because Evaluate clamps them.
func (f Factors) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"paymentHistoryRatio", f.PaymentHistoryRatio},
		{"utilizationRatio", f.UtilizationRatio},
		{"historyLengthYears", f.HistoryLengthYears},
		{"creditMixScore", f.CreditMixScore},
	}
	for _, fld := range fields {
		if math.IsNaN(fld.value) || math.IsInf(fld.value, 0) {
			return fmt.Errorf("%s: %w", fld.name, ErrNonFiniteFactor)
		}
	}
	return nil
}

// Result is the outcome of an evaluation.
type Result struct {
	Score  int    `json:"score"`
	Rating Rating `json:"rating"`
}

// Rating is a named score band.
type Rating string

const (
	RatingPoor      Rating = "poor"
	RatingFair      Rating = "fair"
	RatingGood      Rating = "good"
	RatingVeryGood  Rating = "very_good"
	RatingExcellent Rating = "excellent"
)

// Band is a closed score interval that maps to one rating.
type Band struct {
	Rating Rating `json:"rating"`
	Label  string `json:"label"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
}

// bands is ordered from best to worst; RatingFor relies on that order.
var bands = []Band{
	{Rating: RatingExcellent, Label: "Excellent", Min: 800, Max: MaxScore},
	{Rating: RatingVeryGood, Label: "Very Good", Min: 740, Max: 799},
	{Rating: RatingGood, Label: "Good", Min: 670, Max: 739},
	{Rating: RatingFair, Label: "Fair", Min: 580, Max: 669},
	{Rating: RatingPoor, Label: "Poor", Min: MinScore, Max: 579},
}

// Bands returns a copy of the rating bands, best first.
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out, bands)
	return out
}

// RatingFor classifies a score. Scores below the range are Poor and scores
// above it are Excellent, so every integer has exactly one rating.
func RatingFor(score int) Rating {
	for _, b := range bands {
		if score >= b.Min {
			return b.Rating
		}
	}
	return RatingPoor
}

// Label returns the display name of the rating.
func (r Rating) Label() string {
	for _, b := range bands {
		if b.Rating == r {
			return b.Label
		}
	}
	return string(r)
}

// Valid reports whether r is one of the defined ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingPoor, RatingFair, RatingGood, RatingVeryGood, RatingExcellent:
		return true
	}
	return false
}
