package main

import (
	"fmt"
	"os"
	"time"

	"github.com/oarkflow/json"
	"github.com/urfave/cli/v2"

	"github.com/oarkflow/edi"
	"github.com/oarkflow/edi/pkg/rules"
)

func main() {
	app := &cli.App{
		Name:  "edi",
		Usage: "Parse and validate X12 healthcare EDI documents",
		Commands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate an X12 file and print the document and report as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the X12 file",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "rule-set",
						Aliases: []string{"r"},
						Usage:   "Built-in rule set to apply (basic, business, hipaa, hipaa-advanced, enhanced-business, comprehensive)",
					},
					&cli.StringFlag{
						Name:  "rules",
						Usage: "Path to a custom rule file (YAML, JSON, or BCL)",
					},
					&cli.IntFlag{
						Name:  "max-errors",
						Usage: "Stop rule evaluation after this many errors (0 = unlimited)",
					},
					&cli.BoolFlag{
						Name:  "fail-fast",
						Usage: "Stop rule evaluation at the first error-severity firing",
					},
					&cli.DurationFlag{
						Name:  "rule-budget",
						Usage: "Wall-clock budget for rule evaluation",
					},
					&cli.BoolFlag{
						Name:  "report-only",
						Usage: "Print only the diagnostic report",
					},
				},
				Action: runValidate,
			},
			{
				Name:   "rule-sets",
				Usage:  "List the built-in rule sets",
				Action: listRuleSets,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runValidate(c *cli.Context) error {
	opts := []edi.Option{
		edi.WithPolicy(rules.Policy{
			MaxErrors: c.Int("max-errors"),
			FailFast:  c.Bool("fail-fast"),
		}),
	}
	if sets := c.StringSlice("rule-set"); len(sets) > 0 {
		opts = append(opts, edi.WithRuleSets(sets...))
	}
	if path := c.String("rules"); path != "" {
		opts = append(opts, edi.WithRuleFile(path))
	}
	if budget := c.Duration("rule-budget"); budget > 0 {
		opts = append(opts, edi.WithRuleBudget(budget))
	}

	validator, err := edi.New(opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := validator.ValidateFile(c.String("file"))
	if err != nil {
		return err
	}

	var payload any = result.ToMap()
	if c.Bool("report-only") {
		payload = result.Report
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "validated in %s, valid=%v\n", time.Since(start).Round(time.Millisecond), result.IsValid())

	if !result.IsValid() {
		return cli.Exit("", 2)
	}
	return nil
}

func listRuleSets(*cli.Context) error {
	for _, name := range rules.SetNames() {
		set, err := rules.BuiltinSet(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s %d rules\n", name, len(set))
	}
	return nil
}
