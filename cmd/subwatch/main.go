package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/app"
	"github.com/hamed0406/subwatch/internal/config"
	"github.com/hamed0406/subwatch/internal/logging"
	"github.com/hamed0406/subwatch/internal/pipeline"
	"github.com/hamed0406/subwatch/internal/scheduler"
)

const usage = `usage: subwatch [flags] <command>

commands:
  run       probe candidates, store today's snapshot, alert on new hosts
  collect   probe and store only
  compare   diff today against yesterday and alert
  status    show how long monitoring has been running
  schedule  run on SCHEDULE until interrupted

flags:
`

func main() {
	cfg := config.FromEnv()

	fs := pflag.NewFlagSet("subwatch", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.CandidateSource, "source", cfg.CandidateSource, "candidate source: file or cloudwatch")
	fs.StringVarP(&cfg.CandidateFile, "file", "f", cfg.CandidateFile, "newline-delimited candidate file")
	fs.StringVar(&cfg.LogGroup, "log-group", cfg.LogGroup, "CloudWatch log group with enumerator output")
	fs.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "snapshot store: memory, file, s3, redis or postgres")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the file store")
	fs.StringVar(&cfg.DataBucket, "bucket", cfg.DataBucket, "S3 bucket for the s3 store")
	fs.StringVar(&cfg.DeployOutputsFile, "deploy-outputs", cfg.DeployOutputsFile, "terraform output -json file")
	fs.DurationVar(&cfg.ProbeTimeout, "timeout", cfg.ProbeTimeout, "per-request probe timeout")
	fs.IntVarP(&cfg.ProbeConcurrency, "concurrency", "c", cfg.ProbeConcurrency, "probe workers")
	fs.Float64Var(&cfg.ProbeRPS, "rps", cfg.ProbeRPS, "probe attempts per second, 0 for unlimited")
	fs.DurationVar(&cfg.RunBudget, "budget", cfg.RunBudget, "wall-clock cap for probing")
	fs.StringVar(&cfg.AlertTypes, "alerts", cfg.AlertTypes, "comma separated alert types")
	fs.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "cron line, descriptor or interval for the schedule command")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	days := fs.Int("days", pipeline.DefaultLookback, "days to scan back for the status command")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	cmd := fs.Arg(0)
	if cmd == "" {
		fs.Usage()
		os.Exit(2)
	}

	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup_failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "subwatch:", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := dispatch(ctx, a, cmd, *days, os.Stdout); err != nil {
		logger.Error("command_failed", zap.String("command", cmd), zap.Error(err))
		fmt.Fprintln(os.Stderr, "subwatch:", err)
		a.Close()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, a *app.App, cmd string, days int, out io.Writer) error {
	switch cmd {
	case "run":
		rep, err := a.Pipeline.Execute(ctx)
		if err != nil {
			return err
		}
		printReport(out, rep)
	case "collect":
		rep, err := a.Pipeline.Collect(ctx)
		if err != nil {
			return err
		}
		printReport(out, rep)
	case "compare":
		rep, err := a.Pipeline.Compare(ctx)
		if err != nil {
			return err
		}
		printReport(out, rep)
	case "status":
		st, err := pipeline.BuildStatus(ctx, a.Store, time.Now(), days)
		if err != nil {
			return err
		}
		printStatus(out, st, time.Now())
	case "schedule":
		s, err := scheduler.Parse(a.Config.Schedule)
		if err != nil {
			return err
		}
		scheduler.NewRunner(a.Logger, s, a.Pipeline.Run, false).Run(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func printReport(w io.Writer, rep pipeline.Report) {
	fmt.Fprintf(w, "day %s: %s candidates, %s alive, %s ips\n",
		rep.Day, humanize.Comma(int64(rep.Candidates)), humanize.Comma(int64(rep.Alive)), humanize.Comma(int64(rep.IPs)))
	if len(rep.New) > 0 {
		fmt.Fprintf(w, "%s new:\n", humanize.Comma(int64(len(rep.New))))
		for _, d := range rep.New {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
	if rep.AlertError != "" {
		fmt.Fprintf(w, "alert delivery failed: %s\n", rep.AlertError)
	}
}

func printStatus(w io.Writer, st pipeline.Status, now time.Time) {
	if st.MonitoringSince == nil {
		fmt.Fprintln(w, "no snapshots found")
		return
	}
	fmt.Fprintf(w, "monitoring since %s (%s), %d days recorded\n",
		st.MonitoringSince.Format("2006-01-02"), humanize.RelTime(*st.MonitoringSince, now, "ago", "from now"), st.Days)
	if st.HasToday {
		fmt.Fprintf(w, "alive today: %s\n", humanize.Comma(int64(st.AliveToday)))
	} else {
		fmt.Fprintln(w, "no snapshot for today yet")
	}
}
