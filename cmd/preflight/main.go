// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/multierr"

	"github.com/hamed0406/subwatch/internal/config"
	"github.com/hamed0406/subwatch/internal/scheduler"
)

func main() {
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	failed := false
	fail := func(msg string) { failed = true; red.Fprintln(os.Stderr, "✖", msg) }
	warn := func(msg string) { yellow.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { green.Println("✔", msg) }

	cfg := config.FromEnv()
	for _, err := range multierr.Errors(cfg.Validate()) {
		fail(err.Error())
	}

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty; POST /api/runs is open to anyone.")
	}
	if len(cfg.PublicAPIKeys) == 0 {
		warn("PUBLIC_API_KEYS is empty; read routes are open to anyone.")
	}
	for _, name := range []string{"ADMIN_API_KEYS", "PUBLIC_API_KEYS", "ALERT_TYPES"} {
		if strings.Contains(os.Getenv(name), " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if _, err := scheduler.Parse(cfg.Schedule); err != nil {
		fail(err.Error())
	} else {
		ok("SCHEDULE=" + cfg.Schedule)
	}

	ok(fmt.Sprintf("CANDIDATE_SOURCE=%s STORE_BACKEND=%s", cfg.CandidateSource, cfg.StoreBackend))
	if cfg.StoreBackend == "memory" {
		warn("STORE_BACKEND=memory; snapshots are lost on restart and day-over-day diffs never fire.")
	}
	if cfg.AWSRegion == "" && (cfg.StoreBackend == "s3" || cfg.CandidateSource == "cloudwatch" || strings.Contains(cfg.AlertTypes, "email")) {
		warn("AWS_REGION empty; the SDK default chain must supply one.")
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
