// Package cli implements scorectl, the offline batch front end to the
// score engine.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/loticredit/loticredit/internal/logging"
	"github.com/loticredit/loticredit/internal/score"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs to stderr (optional, default: false)",
	}

	formatFlag = &urfave.StringFlag{
		Name:    "format",
		Aliases: []string{"o"},
		Usage:   "Output format [json, yaml]",
		Value:   formatJSON,
	}

	ceilingFlag = &urfave.IntFlag{
		Name:  "inquiry-ceiling",
		Usage: "Inquiry count at which the inquiry component reaches zero",
		Value: score.DefaultInquiryCeiling,
	}
)

// app carries the state resolved by the root Before hook.
type app struct {
	out    io.Writer
	errOut io.Writer
	format string
	engine *score.Engine
	logger *slog.Logger
}

// Execute builds and runs scorectl against the process arguments.
func Execute(v string) {
	if v != "" {
		version = v
	}
	cmd := NewApp(os.Stdout, os.Stderr)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// NewApp returns the root command writing results to out and logs to errOut.
func NewApp(out, errOut io.Writer) *urfave.Command {
	a := &app{
		out:    out,
		errOut: errOut,
		format: formatJSON,
		engine: score.NewEngine(score.DefaultConfig()),
		logger: logging.NewWithWriter(errOut, "warn", "text"),
	}

	return &urfave.Command{
		Name:            "scorectl",
		Version:         version,
		Usage:           "Evaluate LotiCredit scores from the command line",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []urfave.Flag{
			debugFlag,
			formatFlag,
			ceilingFlag,
		},
		Commands: []*urfave.Command{
			a.evaluateCmd(),
			a.batchCmd(),
			a.bandsCmd(),
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			if cmd.Bool(debugFlag.Name) {
				a.logger = logging.NewWithWriter(errOut, "debug", "text")
			}

			switch f := cmd.String(formatFlag.Name); f {
			case formatJSON:
				a.format = formatJSON
			case formatYAML, "yml":
				a.format = formatYAML
			default:
				return ctx, fmt.Errorf("unsupported format %q (want json or yaml)", f)
			}

			ceiling := int(cmd.Int(ceilingFlag.Name))
			a.engine = score.NewEngine(score.Config{InquiryCeiling: ceiling})
			a.logger.Debug("engine ready", "inquiry_ceiling", a.engine.InquiryCeiling(), "format", a.format)
			return ctx, nil
		},
	}
}

func (a *app) encode(v any) error {
	if a.format == formatYAML {
		e := yaml.NewEncoder(a.out)
		e.SetIndent(2)
		if err := e.Encode(v); err != nil {
			return err
		}
		return e.Close()
	}
	e := json.NewEncoder(a.out)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
