package cli

import (
	"context"
	"fmt"

	urfave "github.com/urfave/cli/v3"

	"github.com/loticredit/loticredit/internal/score"
)

// Evaluation is the output of a single evaluate run.
type Evaluation struct {
	Factors    score.Factors     `json:"factors" yaml:"factors"`
	Score      int               `json:"score" yaml:"score"`
	Rating     score.Rating      `json:"rating" yaml:"rating"`
	Label      string            `json:"label" yaml:"label"`
	Breakdown  score.Breakdown   `json:"breakdown" yaml:"breakdown"`
	Indicators []score.Indicator `json:"indicators" yaml:"indicators"`
}

func (a *app) evaluate(f score.Factors) Evaluation {
	b := a.engine.Breakdown(f)
	return Evaluation{
		Factors:    f,
		Score:      b.Score,
		Rating:     b.Rating,
		Label:      b.Rating.Label(),
		Breakdown:  b,
		Indicators: score.Indicators(f),
	}
}

func (a *app) evaluateCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "evaluate",
		Usage: "Evaluate one factor set",
		Flags: []urfave.Flag{
			&urfave.FloatFlag{
				Name:     "payment",
				Usage:    "Share of payments made on time [0-1]",
				Required: true,
			},
			&urfave.FloatFlag{
				Name:     "utilization",
				Usage:    "Share of available credit in use [0-1]",
				Required: true,
			},
			&urfave.FloatFlag{
				Name:     "history",
				Usage:    "Length of credit history in years",
				Required: true,
			},
			&urfave.FloatFlag{
				Name:     "mix",
				Usage:    "Credit mix diversity [0-1]",
				Required: true,
			},
			&urfave.IntFlag{
				Name:  "inquiries",
				Usage: "Hard inquiries in the trailing window",
			},
		},
		Action: func(ctx context.Context, cmd *urfave.Command) error {
			f := score.Factors{
				PaymentHistoryRatio: cmd.Float("payment"),
				UtilizationRatio:    cmd.Float("utilization"),
				HistoryLengthYears:  cmd.Float("history"),
				CreditMixScore:      cmd.Float("mix"),
				RecentInquiries:     int(cmd.Int("inquiries")),
			}
			if err := f.Validate(); err != nil {
				return fmt.Errorf("invalid factors: %w", err)
			}
			return a.encode(a.evaluate(f))
		},
	}
}

func (a *app) bandsCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "bands",
		Usage: "Print the rating bands",
		Action: func(ctx context.Context, cmd *urfave.Command) error {
			return a.encode(score.Bands())
		},
	}
}
