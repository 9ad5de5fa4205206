// Package app builds the pipeline and its collaborators from configuration.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/candidate"
	"github.com/hamed0406/subwatch/internal/config"
	"github.com/hamed0406/subwatch/internal/deploy"
	"github.com/hamed0406/subwatch/internal/diff"
	"github.com/hamed0406/subwatch/internal/notify"
	"github.com/hamed0406/subwatch/internal/pipeline"
	"github.com/hamed0406/subwatch/internal/probe"
	"github.com/hamed0406/subwatch/internal/repo"
	"github.com/hamed0406/subwatch/internal/repo/filestore"
	"github.com/hamed0406/subwatch/internal/repo/memory"
	"github.com/hamed0406/subwatch/internal/repo/postgres"
	"github.com/hamed0406/subwatch/internal/repo/redisstore"
	"github.com/hamed0406/subwatch/internal/repo/s3store"
)

type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    repo.SnapshotStore
	Detector *diff.Detector
	Pipeline *pipeline.Pipeline

	closers []func()
}

// awsLoader loads the shared AWS config at most once, and only when a
// component needs it.
type awsLoader struct {
	region string
	once   sync.Once
	cfg    aws.Config
	err    error
}

func (l *awsLoader) load(ctx context.Context) (aws.Config, error) {
	l.once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if l.region != "" {
			opts = append(opts, awsconfig.WithRegion(l.region))
		}
		l.cfg, l.err = awsconfig.LoadDefaultConfig(ctx, opts...)
		if l.err != nil {
			l.err = fmt.Errorf("load aws config: %w", l.err)
		}
	})
	return l.cfg, l.err
}

func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if cfg.DeployOutputsFile != "" {
		out, err := deploy.Load(cfg.DeployOutputsFile)
		if err != nil {
			return nil, fmt.Errorf("deploy outputs: %w", err)
		}
		if cfg.DataBucket == "" {
			cfg.DataBucket = out.BucketName
		}
		if cfg.AWSRegion == "" {
			cfg.AWSRegion = out.Region
		}
		log.Info("deploy_outputs_loaded", zap.String("bucket", out.BucketName), zap.String("region", out.Region))
	}

	a := &App{Config: cfg, Logger: log}
	loader := &awsLoader{region: cfg.AWSRegion}

	store, err := a.buildStore(ctx, loader)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	src, err := a.buildSource(ctx, loader)
	if err != nil {
		a.Close()
		return nil, err
	}

	disp, err := a.buildDispatcher(ctx, loader)
	if err != nil {
		a.Close()
		return nil, err
	}

	prober := probe.NewProber(log,
		probe.NewHTTPChecker(cfg.ProbeTimeout, false),
		probe.NewDNSResolver(cfg.ProbeTimeout),
		probe.Options{
			Concurrency: cfg.ProbeConcurrency,
			RPS:         cfg.ProbeRPS,
			Budget:      cfg.RunBudget,
		},
	)
	a.Detector = diff.NewDetector(store, log)
	a.Pipeline = pipeline.New(log, src, prober, store, a.Detector, disp)
	return a, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) buildStore(ctx context.Context, l *awsLoader) (repo.SnapshotStore, error) {
	cfg := a.Config
	log := a.Logger.With(zap.String("store", cfg.StoreBackend))
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("store_memory_volatile")
		return memory.New(), nil
	case "file":
		return filestore.New(cfg.DataDir)
	case "s3":
		awsCfg, err := l.load(ctx)
		if err != nil {
			return nil, err
		}
		return s3store.New(s3.NewFromConfig(awsCfg), cfg.DataBucket)
	case "redis":
		client, err := redisstore.NewRedisUniversalClient(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return redisstore.New(client, ""), nil
	case "postgres":
		pg, err := postgres.New(ctx, cfg.DatabaseURL, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (a *App) buildSource(ctx context.Context, l *awsLoader) (candidate.Source, error) {
	cfg := a.Config
	switch cfg.CandidateSource {
	case "file":
		return candidate.NewFileSource(cfg.CandidateFile, a.Logger), nil
	case "cloudwatch":
		awsCfg, err := l.load(ctx)
		if err != nil {
			return nil, err
		}
		return candidate.NewCloudWatchSource(cloudwatchlogs.NewFromConfig(awsCfg), cfg.LogGroup, a.Logger), nil
	default:
		return nil, fmt.Errorf("unknown candidate source %q", cfg.CandidateSource)
	}
}

func (a *App) buildDispatcher(ctx context.Context, l *awsLoader) (*notify.Dispatcher, error) {
	types, err := notify.ParseAlertTypes(a.Config.AlertTypes)
	if err != nil {
		return nil, err
	}
	notifiers := make(map[notify.AlertType]notify.Notifier, len(types))
	for _, t := range types {
		switch t {
		case notify.AlertDiscord:
			// a nil *Discord must not become a non-nil interface
			if d := notify.NewDiscord(a.Config.DiscordWebhook); d != nil {
				notifiers[t] = d
			} else {
				a.Logger.Warn("alert_discord_no_webhook")
			}
		case notify.AlertEmail:
			awsCfg, err := l.load(ctx)
			if err != nil {
				return nil, err
			}
			notifiers[t] = notify.NewEmail(sns.NewFromConfig(awsCfg), a.Config.EmailTopicSuffix)
		}
	}
	return notify.NewDispatcher(a.Logger, types, notifiers), nil
}
