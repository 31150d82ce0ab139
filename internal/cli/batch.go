package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/loticredit/loticredit/internal/score"
)

var errEmptyBatch = errors.New("batch file contains no entries")

// BatchEntry is one named factor set in a batch file.
type BatchEntry struct {
	Name    string        `json:"name" yaml:"name"`
	Factors score.Factors `json:"factors" yaml:"factors"`
}

// BatchResult is the evaluation of one BatchEntry.
type BatchResult struct {
	Name   string       `json:"name" yaml:"name"`
	Score  int          `json:"score" yaml:"score"`
	Rating score.Rating `json:"rating" yaml:"rating"`
	Label  string       `json:"label" yaml:"label"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	Count        int                  `json:"count" yaml:"count"`
	AverageScore float64              `json:"averageScore" yaml:"averageScore"`
	MinScore     int                  `json:"minScore" yaml:"minScore"`
	MaxScore     int                  `json:"maxScore" yaml:"maxScore"`
	ByRating     map[score.Rating]int `json:"byRating" yaml:"byRating"`
}

// BatchReport is the output of a batch run.
type BatchReport struct {
	Results []BatchResult `json:"results" yaml:"results"`
	Summary BatchSummary  `json:"summary" yaml:"summary"`
}

// ParseBatch reads a YAML or JSON list of entries. JSON parses as YAML, so
// one decoder serves both. Unnamed entries are named by position.
func ParseBatch(r io.Reader) ([]BatchEntry, error) {
	var entries []BatchEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmptyBatch
		}
		return nil, fmt.Errorf("parsing batch: %w", err)
	}
	if len(entries) == 0 {
		return nil, errEmptyBatch
	}
	for i := range entries {
		if entries[i].Name == "" {
			entries[i].Name = fmt.Sprintf("entry-%d", i+1)
		}
		if err := entries[i].Factors.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", entries[i].Name, err)
		}
	}
	return entries, nil
}

// RunBatch evaluates every entry in order.
func RunBatch(engine *score.Engine, entries []BatchEntry) BatchReport {
	report := BatchReport{
		Results: make([]BatchResult, 0, len(entries)),
		Summary: BatchSummary{
			ByRating: make(map[score.Rating]int),
			MinScore: score.MaxScore,
			MaxScore: score.MinScore,
		},
	}
	total := 0
	for _, e := range entries {
		r := engine.Evaluate(e.Factors)
		report.Results = append(report.Results, BatchResult{
			Name:   e.Name,
			Score:  r.Score,
			Rating: r.Rating,
			Label:  r.Rating.Label(),
		})
		total += r.Score
		report.Summary.ByRating[r.Rating]++
		report.Summary.MinScore = min(report.Summary.MinScore, r.Score)
		report.Summary.MaxScore = max(report.Summary.MaxScore, r.Score)
	}
	report.Summary.Count = len(entries)
	if len(entries) > 0 {
		report.Summary.AverageScore = math.Round(float64(total)/float64(len(entries))*10) / 10
	}
	return report
}

func (a *app) batchCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "batch",
		Usage: "Evaluate a YAML or JSON list of named factor sets",
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the batch file, or - for stdin",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *urfave.Command) error {
			path := cmd.String("file")

			var r io.Reader = os.Stdin
			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening batch file: %w", err)
				}
				defer f.Close()
				r = f
			}

			entries, err := ParseBatch(r)
			if err != nil {
				return err
			}
			a.logger.Debug("batch loaded", "file", path, "entries", len(entries))
			return a.encode(RunBatch(a.engine, entries))
		},
	}
}
