// Package main wires together the stock news service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/stocknews/internal/analyzer/openai"
	"github.com/finsight/stocknews/internal/api"
	"github.com/finsight/stocknews/internal/clock/system"
	"github.com/finsight/stocknews/internal/config"
	"github.com/finsight/stocknews/internal/digest"
	contentfetcher "github.com/finsight/stocknews/internal/fetcher/content"
	"github.com/finsight/stocknews/internal/fetcher/investing"
	"github.com/finsight/stocknews/internal/hash/sha256"
	"github.com/finsight/stocknews/internal/id/uuid"
	"github.com/finsight/stocknews/internal/logging"
	smtpmailer "github.com/finsight/stocknews/internal/mailer/smtp"
	"github.com/finsight/stocknews/internal/metrics"
	"github.com/finsight/stocknews/internal/news"
	"github.com/finsight/stocknews/internal/pipeline"
	"github.com/finsight/stocknews/internal/scheduler"
	"github.com/finsight/stocknews/internal/storage/elastic"
	"github.com/finsight/stocknews/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, stop); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, stop context.CancelFunc) error {
	loc, err := cfg.DigestLocation()
	if err != nil {
		return err
	}

	clock := system.New()
	hasher := sha256.New()
	idGen := uuid.NewUUIDGenerator()

	store, err := elastic.New(elastic.Config{
		Addresses: cfg.Elastic.Addresses,
		Index:     cfg.Elastic.Index,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	}, logger.Named("elastic"))
	if err != nil {
		return fmt.Errorf("elastic store: %w", err)
	}
	if err := store.EnsureIndex(ctx); err != nil {
		logger.Warn("ensure index failed, continuing", zap.Error(err))
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: time.Duration(cfg.Database.MaxConnLifetime) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("postgres pool: %w", err)
	}
	defer pool.Close()

	registry, err := postgres.NewRegistryStore(pool)
	if err != nil {
		return fmt.Errorf("registry store: %w", err)
	}
	audit, err := postgres.NewAuditStore(pool)
	if err != nil {
		return fmt.Errorf("audit store: %w", err)
	}

	retryPolicy := news.NewExponentialRetryPolicy(cfg.Crawler.MaxRetries, cfg.RetryDelay(), time.Minute)
	fetcher, err := investing.New(investing.Config{
		UserAgent:         cfg.Crawler.UserAgent,
		NavTimeout:        cfg.NavTimeout(),
		MaxParallelPages:  cfg.Crawler.MaxParallelPages,
		RequestsPerSecond: cfg.Crawler.RequestsPerSecond,
		MaxAgeHours:       cfg.Crawler.MaxAgeHours,
	}, retryPolicy, clock, logger.Named("fetcher"))
	if err != nil {
		return fmt.Errorf("fetcher: %w", err)
	}
	defer fetcher.Close()

	content := contentfetcher.New(contentfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.NavTimeout(),
		MaxChars:  cfg.Crawler.ContentMaxChars,
	})

	analyzer := openai.New(openai.Config{
		BaseURL:       cfg.Analyzer.BaseURL,
		APIKey:        cfg.Analyzer.APIKey,
		Model:         cfg.Analyzer.Model,
		MaxTokens:     cfg.Analyzer.MaxTokens,
		Timeout:       cfg.AnalyzerTimeout(),
		MaxConcurrent: cfg.Analyzer.MaxConcurrent,
	}, logger.Named("analyzer"))

	pipe := pipeline.New(
		pipeline.Config{
			ArticlesPerTicker: cfg.Crawler.MaxArticles,
			Concurrency:       cfg.Crawler.Concurrency,
		},
		fetcher,
		content,
		analyzer,
		store,
		registry,
		audit,
		hasher,
		idGen,
		clock,
		logger.Named("pipeline"),
	)

	var mailer news.Mailer
	if cfg.SMTP.Host != "" {
		mailer, err = smtpmailer.New(smtpmailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
			UseTLS:   true,
		}, logger.Named("mailer"))
		if err != nil {
			return fmt.Errorf("mailer: %w", err)
		}
	} else {
		logger.Warn("smtp not configured, digests disabled")
		mailer = noopMailer{}
	}

	digestSvc, err := digest.NewService(
		registry,
		store,
		mailer,
		audit,
		idGen,
		clock,
		news.NewFixedDelayPolicy(3, time.Minute),
		time.Duration(cfg.Digest.LookbackHours)*time.Hour,
		loc,
		logger.Named("digest"),
	)
	if err != nil {
		return fmt.Errorf("digest service: %w", err)
	}

	retention := pipeline.NewRetention(
		store,
		audit,
		cfg.Retention.NewsDays,
		cfg.Retention.LogDays,
		clock,
		logger.Named("retention"),
	)

	sched := scheduler.New(loc, logger.Named("scheduler"))
	if err := sched.Register("crawl", fmt.Sprintf("@every %s", cfg.CrawlInterval()), func(ctx context.Context) error {
		_, err := pipe.CrawlAll(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := sched.Register("digest", "0 * * * *", digestSvc.RunHourly); err != nil {
		return err
	}
	if err := sched.Register("cleanup", fmt.Sprintf("0 %d * * *", cfg.Retention.CleanupHour), func(ctx context.Context) error {
		_, _, err := retention.Run(ctx)
		return err
	}); err != nil {
		return err
	}

	apiServer := api.NewServer(pipe, digestSvc, store, registry, audit, sched, store, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	sched.Stop()
	logger.Info("shutdown complete")
	return nil
}

// noopMailer stands in when SMTP is not configured so digest runs still
// record their outcome.
type noopMailer struct{}

func (noopMailer) Send(context.Context, string, string, string) error {
	return errors.New("smtp not configured")
}
