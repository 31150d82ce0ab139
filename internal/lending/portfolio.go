package lending

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/loticredit/loticredit/internal/pagination"
	"github.com/loticredit/loticredit/internal/score"
	"github.com/loticredit/loticredit/internal/traces"
)

// Risk flag thresholds used by the portfolio risk summary.
const (
	RiskScoreBelow       = 600
	RiskDebtToIncomeOver = 40.0 // percent
	RiskInquiriesOver    = 3
	RiskHistoryBelow     = 2.0 // years

	portfolioBatchSize = 500
)

// Tally is a count of applications and the sum of their amounts.
type Tally struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

func (t *Tally) add(amount float64) {
	t.Count++
	t.Amount += amount
}

// BandCount is the number of applicants whose score fell in one rating band.
type BandCount struct {
	score.Band
	Count int `json:"count"`
}

// RiskSummary counts applications tripping each risk flag. Inquiry and
// history flags can only be checked on applications scored from factors;
// Unassessed counts the rest.
type RiskSummary struct {
	LowScore      int `json:"lowScore"`
	HighDTI       int `json:"highDebtToIncome"`
	ManyInquiries int `json:"manyInquiries"`
	ShortHistory  int `json:"shortHistory"`
	Flagged       int `json:"flagged"`
	Unassessed    int `json:"unassessed"`
}

// Portfolio summarizes every application a lender has received.
type Portfolio struct {
	LenderID     string              `json:"lenderId"`
	Applications int                 `json:"applications"`
	Requested    float64             `json:"requestedAmount"`
	Active       Tally               `json:"activeLoans"`
	AverageScore float64             `json:"averageScore"`
	ByLoanType   map[LoanType]*Tally `json:"byLoanType"`
	ByStatus     map[Status]*Tally   `json:"byStatus"`
	ByRating     []BandCount         `json:"byRating"`
	Risk         RiskSummary         `json:"risk"`
	GeneratedAt  time.Time           `json:"generatedAt"`
}

func newPortfolio(lenderID string, at time.Time) *Portfolio {
	p := &Portfolio{
		LenderID:    lenderID,
		ByLoanType:  make(map[LoanType]*Tally, len(LoanTypes)),
		ByStatus:    make(map[Status]*Tally),
		GeneratedAt: at,
	}
	for _, lt := range LoanTypes {
		p.ByLoanType[LoanType(lt)] = &Tally{}
	}
	for _, b := range score.Bands() {
		p.ByRating = append(p.ByRating, BandCount{Band: b})
	}
	return p
}

// add folds one application into the summary. Approved applications are
// the lender's active loans.
func (p *Portfolio) add(a *Application) {
	p.Applications++
	p.Requested += a.Amount

	if t, ok := p.ByLoanType[a.LoanType]; ok {
		t.add(a.Amount)
	} else {
		p.ByLoanType[a.LoanType] = &Tally{Count: 1, Amount: a.Amount}
	}
	if t, ok := p.ByStatus[a.Status]; ok {
		t.add(a.Amount)
	} else {
		p.ByStatus[a.Status] = &Tally{Count: 1, Amount: a.Amount}
	}
	if a.Status == StatusApproved {
		p.Active.add(a.Amount)
	}

	rating := score.RatingFor(a.Score)
	for i := range p.ByRating {
		if p.ByRating[i].Rating == rating {
			p.ByRating[i].Count++
			break
		}
	}

	flagged := false
	if a.Score < RiskScoreBelow {
		p.Risk.LowScore++
		flagged = true
	}
	if a.DebtToIncome() > RiskDebtToIncomeOver {
		p.Risk.HighDTI++
		flagged = true
	}
	if a.Factors == nil {
		p.Risk.Unassessed++
	} else {
		if a.Factors.RecentInquiries > RiskInquiriesOver {
			p.Risk.ManyInquiries++
			flagged = true
		}
		if a.Factors.HistoryLengthYears < RiskHistoryBelow {
			p.Risk.ShortHistory++
			flagged = true
		}
	}
	if flagged {
		p.Risk.Flagged++
	}
}

// Portfolio aggregates all of a lender's applications: volume by loan type
// and status, active loans, the score distribution across rating bands and
// risk flag counts.
func (s *Service) Portfolio(ctx context.Context, lenderID string) (*Portfolio, error) {
	ctx, span := traces.StartSpan(ctx, "lending.Portfolio", traces.LenderID(lenderID))
	defer span.End()

	p := newPortfolio(lenderID, s.timestamp())
	totalScore := 0

	var after *pagination.Cursor
	for {
		batch, err := s.store.ListApplications(ctx, lenderID, "", portfolioBatchSize, after)
		if err != nil {
			traces.RecordError(span, err)
			return nil, fmt.Errorf("failed to load applications: %w", err)
		}
		for _, a := range batch {
			p.add(a)
			totalScore += a.Score
		}
		if len(batch) < portfolioBatchSize {
			break
		}
		last := batch[len(batch)-1]
		after = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	if p.Applications > 0 {
		p.AverageScore = math.Round(float64(totalScore)/float64(p.Applications)*10) / 10
	}
	return p, nil
}
