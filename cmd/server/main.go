package main

import (
	"flag"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/oarkflow/log"

	"github.com/oarkflow/edi"
	"github.com/oarkflow/edi/pkg/rules"
)

type validateRequest struct {
	Payload  string   `json:"payload"`
	RuleSets []string `json:"rule_sets"`
	Rules    string   `json:"rules"`
	Format   string   `json:"format"`
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	budget := flag.Duration("rule-budget", 5*time.Second, "wall-clock budget for rule evaluation per request")
	flag.Parse()

	lg := &log.DefaultLogger

	app := fiber.New(fiber.Config{
		AppName:   "edi-validator",
		BodyLimit: 32 << 20,
	})
	app.Use(cors.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/rule-sets", func(c *fiber.Ctx) error {
		sets := fiber.Map{}
		for _, name := range rules.SetNames() {
			set, err := rules.BuiltinSet(name)
			if err != nil {
				continue
			}
			sets[name] = len(set)
		}
		return c.JSON(sets)
	})

	app.Post("/validate", func(c *fiber.Ctx) error {
		var req validateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
		}
		if req.Payload == "" {
			return fiber.NewError(fiber.StatusBadRequest, "payload is required")
		}
		opts := []edi.Option{edi.WithRuleBudget(*budget)}
		if len(req.RuleSets) > 0 {
			opts = append(opts, edi.WithRuleSets(req.RuleSets...))
		}
		if req.Rules != "" {
			format := req.Format
			if format == "" {
				format = "yaml"
			}
			opts = append(opts, edi.WithRuleSource(req.Rules, format))
		}
		validator, err := edi.New(opts...)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		data := []byte(req.Payload)
		if !edi.Detect(data) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "payload does not look like an X12 interchange")
		}
		result, err := validator.Validate(data)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return c.JSON(result.ToMap())
	})

	// raw X12 body, structural parse only
	app.Post("/parse", func(c *fiber.Ctx) error {
		validator, err := edi.New()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		doc, col, err := validator.Parse(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return c.JSON(fiber.Map{
			"document": doc.ToMap(),
			"report":   col.Report(),
		})
	})

	lg.Info().Str("addr", *addr).Msg("starting edi validation server")
	if err := app.Listen(*addr); err != nil {
		lg.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
