// Threat-model comparison CLI
//
// Usage:
//   iriusrisk compare --baseline v1.0 [--target v2.0] [options]
//   iriusrisk versions
//   iriusrisk serve --port 8080
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/iriusrisk/iriusrisk-cli-sub001/api"
	"github.com/iriusrisk/iriusrisk-cli-sub001/cache"
	"github.com/iriusrisk/iriusrisk-cli-sub001/client"
	"github.com/iriusrisk/iriusrisk-cli-sub001/diagram"
	"github.com/iriusrisk/iriusrisk-cli-sub001/diff"
	"github.com/iriusrisk/iriusrisk-cli-sub001/gate"
	"github.com/iriusrisk/iriusrisk-cli-sub001/snapshot"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "iriusrisk",
		Usage:   "Threat-model version comparison and CI/CD gating",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Product API base URL",
				EnvVars: []string{"IRIUS_API_URL"},
			},
			&cli.StringFlag{
				Name:    "api-token",
				Usage:   "Product API token",
				EnvVars: []string{"IRIUS_API_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "product",
				Usage:   "Product reference the model belongs to",
				EnvVars: []string{"IRIUS_PRODUCT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"IRIUS_LOG_LEVEL"},
			},
		},

		Commands: []*cli.Command{
			compareCommand(),
			versionsCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// COMPARE COMMAND
// =============================================================================

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:  "compare",
		Usage: "Compare two versions of the threat model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "baseline",
				Aliases:  []string{"b"},
				Usage:    "Baseline version name or id",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Target version name or id (omit for the live current state)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "json",
				Usage:   "Output format (json, summary)",
			},
			&cli.BoolFlag{
				Name:  "gate",
				Usage: "Evaluate gating rules and exit non-zero on denial",
			},
			&cli.StringFlag{
				Name:  "gate-config",
				Usage: "YAML file with custom gating rules (implies --gate)",
			},
		},
		Action: runCompare,
	}
}

func runCompare(c *cli.Context) error {
	logger := newLogger(c.String("log-level"))

	assembler, _, err := buildAssembler(c, logger)
	if err != nil {
		return err
	}

	baseline, target, err := assembler.BuildPair(c.Context, c.String("baseline"), c.String("target"))
	if err != nil {
		return fmt.Errorf("snapshot assembly failed: %w", err)
	}

	comparator := diff.NewComparator(logger)
	result, err := comparator.Compare(baseline, target)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	var gateResult *gate.Result
	if c.Bool("gate") || c.String("gate-config") != "" {
		engine := gate.NewEngine()
		if path := c.String("gate-config"); path != "" {
			if err := engine.LoadRules(path); err != nil {
				return err
			}
		}
		gateResult = engine.Evaluate(result)
	}

	switch c.String("format") {
	case "summary":
		outputSummary(result, gateResult)
	default:
		if err := outputJSON(result, gateResult); err != nil {
			return err
		}
	}

	if gateResult != nil && gateResult.Decision == gate.DecisionDeny {
		return cli.Exit("", 2)
	}
	return nil
}

// =============================================================================
// VERSIONS COMMAND
// =============================================================================

func versionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "versions",
		Usage: "List the product's stored versions",
		Action: func(c *cli.Context) error {
			logger := newLogger(c.String("log-level"))
			apiClient, err := buildClient(c, logger)
			if err != nil {
				return err
			}
			versions, err := apiClient.ListVersions(c.Context)
			if err != nil {
				return err
			}
			for _, v := range versions {
				fmt.Printf("%s\t%s\n", v.ID, v.Name)
			}
			return nil
		},
	}
}

// =============================================================================
// SERVE COMMAND
// =============================================================================

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the comparison HTTP service",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "Listen port",
				EnvVars: []string{"IRIUS_PORT"},
			},
			&cli.StringFlag{
				Name:  "gate-config",
				Usage: "YAML file with custom gating rules",
			},
			&cli.DurationFlag{
				Name:  "cache-ttl",
				Value: 10 * time.Minute,
				Usage: "How long stored-version snapshots stay cached (0 disables caching)",
			},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger(c.String("log-level"))

			assembler, apiClient, err := buildAssembler(c, logger)
			if err != nil {
				return err
			}
			if ttl := c.Duration("cache-ttl"); ttl > 0 {
				assembler = assembler.WithCache(cache.New(ttl))
			}

			engine := gate.NewEngine()
			if path := c.String("gate-config"); path != "" {
				if err := engine.LoadRules(path); err != nil {
					return err
				}
			}

			config := api.DefaultConfig()
			config.Port = c.Int("port")
			server := api.NewServer(assembler, diff.NewComparator(logger), engine, apiClient, config, logger)
			return server.Start()
		},
	}
}

// =============================================================================
// WIRING
// =============================================================================

func buildClient(c *cli.Context, logger zerolog.Logger) (*client.Client, error) {
	return client.New(client.Config{
		BaseURL:  c.String("api-url"),
		APIToken: c.String("api-token"),
		Product:  c.String("product"),
		Timeout:  30 * time.Second,
	}, logger)
}

func buildAssembler(c *cli.Context, logger zerolog.Logger) (*snapshot.Assembler, *client.Client, error) {
	apiClient, err := buildClient(c, logger)
	if err != nil {
		return nil, nil, err
	}
	return snapshot.NewAssembler(apiClient, diagram.NewParser(), logger), apiClient, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

func outputJSON(result *diff.ComparisonResult, gateResult *gate.Result) error {
	output := api.CompareResponse{Comparison: result, Gate: gateResult}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func outputSummary(result *diff.ComparisonResult, gateResult *gate.Result) {
	meta := result.Metadata
	fmt.Printf("Comparison %s (%s)\n", meta.ComparisonID, meta.ComparisonMode)
	fmt.Printf("  baseline: %s\n", meta.BaselineVersion)
	fmt.Printf("  target:   %s\n\n", meta.TargetVersion)

	fmt.Println("Architecture:")
	for _, name := range []string{"components", "dataflows", "trustZones"} {
		c := result.Summary.ArchitectureChanges[name]
		fmt.Printf("  %-15s +%d -%d ~%d\n", name, c.Added, c.Removed, c.Modified)
	}

	fmt.Println("Security:")
	for _, name := range []string{"threats", "countermeasures"} {
		c := result.Summary.SecurityChanges[name]
		fmt.Printf("  %-15s +%d -%d ~%d\n", name, c.Added, c.Removed, c.Modified)
	}

	indicators := result.Summary.RiskIndicators
	fmt.Printf("\nRisk indicators: criticalRemovals=%v severityIncreases=%v newComponents=%v\n",
		indicators.HasCriticalRemovals, indicators.HasSeverityIncreases, indicators.HasNewComponents)

	for _, inc := range result.Security.Threats.SeverityIncreases {
		fmt.Printf("  severity increase: %s %s -> %s\n", inc.ThreatName, inc.OldSeverity, inc.NewSeverity)
	}
	for _, rem := range result.Security.Countermeasures.CriticalRemovals {
		fmt.Printf("  critical removal: %s (%s)\n", rem.Name, rem.Severity)
	}

	if gateResult != nil {
		fmt.Printf("\nGate: %s (%d rules)\n", gateResult.Decision, gateResult.RulesRan)
		for _, v := range gateResult.Violations {
			fmt.Printf("  violation: %s\n", v.Message)
		}
		for _, w := range gateResult.Warnings {
			fmt.Printf("  warning: %s\n", w.Message)
		}
	}
}
