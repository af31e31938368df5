// Command trigger asks a running API to execute every probe. It is meant to
// be called from cron with source=scheduled.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	base := flag.String("api", envOr("API_BASE", "http://localhost:8080"), "API base URL")
	source := flag.String("source", "scheduled", "run source: scheduled or manual")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline including retries")
	attempts := flag.Int("attempts", 3, "attempts on connection errors and 5xx")
	failOnCritical := flag.Bool("fail-on-critical", false, "exit 2 when any probe is CRITICAL")
	flag.Parse()

	key := strings.TrimSpace(os.Getenv("ADMIN_API_KEY"))
	if key == "" {
		// fall back to the first key the API itself is configured with
		key = strings.TrimSpace(strings.Split(os.Getenv("ADMIN_API_KEYS"), ",")[0])
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := &client{
		base:     strings.TrimRight(*base, "/"),
		key:      key,
		http:     &http.Client{Timeout: *timeout},
		attempts: *attempts,
	}
	sum, err := c.run(ctx, *source)
	if err != nil {
		fmt.Fprintln(os.Stderr, "✖", err)
		os.Exit(1)
	}

	fmt.Printf("✔ %d probes: %d ok, %d warnings, %d critical\n", sum.Total, sum.OK, sum.Warnings, sum.Critical)
	for _, r := range sum.Results {
		if r.Status != "OK" {
			fmt.Printf("  %-8s %s: %s\n", r.Status, r.Service, r.ErrorMessage)
		}
	}
	if *failOnCritical && sum.Critical > 0 {
		os.Exit(2)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
