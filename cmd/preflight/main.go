// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/opsboard/internal/config"
	"github.com/hamed0406/opsboard/internal/probe"
)

func main() {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()

	if len(cfg.AdminAPIKeys) == 0 {
		fail("ADMIN_API_KEYS is empty (admin routes are open to anyone).")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty (public routes accept admin keys only).")
	}
	for _, name := range []string{"ADMIN_API_KEYS", "PUBLIC_API_KEYS"} {
		if strings.Contains(os.Getenv(name), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}
	ok("ADDR=" + cfg.Addr)

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty: API will use in-memory stores and lose flags and results on restart.")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			fail("DATABASE_URL unreachable: " + err.Error())
		} else {
			ok("DATABASE_URL reachable")
			_ = conn.Close(ctx)
		}
		cancel()
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty: any origin may call the API from a browser.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if tz := os.Getenv("SLA_TIMEZONE"); tz != "" && cfg.SLALocation.String() != tz {
		fail("SLA_TIMEZONE " + tz + " is not a known location")
	} else {
		ok("SLA months are cut in " + cfg.SLALocation.String())
	}

	defs, err := probe.LoadDefinitions(cfg.ProbesFile)
	switch {
	case err != nil:
		fail(err.Error())
	case len(defs) == 0:
		warn("no probes file at " + cfg.ProbesFile + ": only built-in storage probes will run.")
	default:
		for _, d := range defs {
			if _, err := probe.Build(d, probe.BuildDeps{Database: noDB{}}); err != nil {
				fail(err.Error())
			}
		}
		ok(fmt.Sprintf("%d probes defined in %s", len(defs), cfg.ProbesFile))
	}

	if cfg.SlackWebhookURL == "" {
		warn("SLACK_WEBHOOK_URL empty: alerts go to the log only.")
	} else {
		ok("Slack alerts enabled")
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}

// noDB lets postgres probe definitions validate without a connection.
type noDB struct{}

func (noDB) Ping(ctx context.Context) error { return nil }
