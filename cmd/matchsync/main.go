package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rdnply/matchsync/pkg/feed"
	"github.com/rdnply/matchsync/pkg/handler"
	"github.com/rdnply/matchsync/pkg/ledger"
	"github.com/rdnply/matchsync/pkg/publisher"
	"github.com/rdnply/matchsync/pkg/syncer"
)

type Opts struct {
	ConfigPath string `long:"config" short:"c" default:"config.toml" env:"MATCHSYNC_CONFIG_PATH"`
	Debug      bool   `long:"debug"`
	NoBanner   bool   `long:"no-banner"`
}

const banner = `
                 _       _
 _ __ ___   __ _| |_ ___| |__  ___ _   _ _ __   ___
| '_ ` + "`" + ` _ \ / _` + "`" + ` | __/ __| '_ \/ __| | | | '_ \ / __|
| | | | | | (_| | || (__| | | \__ \ |_| | | | | (__
|_| |_| |_|\__,_|\__\___|_| |_|___/\__, |_| |_|\___|
                                   |___/
`

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)

	// Parse args
	opts := Opts{}
	_, err := flags.Parse(&opts)
	if err != nil {
		log.WithError(err).Fatal("failed to parse command line arguments")
	}

	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if !opts.NoBanner {
		log.Info(banner)
	}

	log.WithFields(log.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
	}).Info("running matchsync")

	// Load TOML file
	log.Debugf("loading configuration %q", opts.ConfigPath)
	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration file")
	}

	storage, err := ledger.New(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to open ledger")
	}

	source := feed.NewClient(cfg.Feed)

	factory := func(ctx context.Context, credential string) (publisher.Publisher, error) {
		return publisher.NewBlogger(ctx, cfg.Blogger, credential)
	}

	sync := syncer.New(storage, source, factory, cfg.Sync)

	// Schedule periodic passes if configured. SkipIfStillRunning keeps a
	// slow pass from overlapping with the next tick.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if cfg.Sync.Schedule != "" {
		_, err = c.AddFunc(cfg.Sync.Schedule, func() {
			if _, err := sync.Run(ctx); err != nil {
				log.WithError(err).Error("scheduled sync pass failed")
			}
		})
		if err != nil {
			log.WithError(err).Fatalf("can't create cron task for schedule: %s", cfg.Sync.Schedule)
		}

		log.Debugf("-> %s (sync every %q)", cfg.Feed.URL, cfg.Sync.Schedule)
		c.Start()
	}

	group.Go(func() error {
		defer func() {
			log.Info("shutting down cron")
			c.Stop()
		}()

		<-ctx.Done()
		return ctx.Err()
	})

	// Run web server
	bindAddress := cfg.Server.BindAddress
	if bindAddress == "*" {
		bindAddress = ""
	}

	srv := http.Server{
		Addr: fmt.Sprintf("%s:%d", bindAddress, cfg.Server.Port),
		Handler: handler.New(sync, storage, cfg.Blogger.OAuth2(), handler.Opts{
			APIKey:       cfg.Server.APIKey,
			CookieSecret: cfg.Server.CookieSecret,
		}),
	}

	group.Go(func() error {
		log.Infof("running listener at %s", srv.Addr)
		return srv.ListenAndServe()
	})

	group.Go(func() error {
		// Shutdown web server
		defer func() {
			log.Info("shutting down web server")
			if err := srv.Shutdown(context.Background()); err != nil {
				log.WithError(err).Error("server shutdown failed")
			}
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			cancel()
			return nil
		}
	})

	if err := group.Wait(); err != nil && (err != context.Canceled && err != http.ErrServerClosed) {
		log.WithError(err).Error("wait error")
	}

	if err := storage.Close(); err != nil {
		log.WithError(err).Error("failed to close ledger")
	}

	log.Info("gracefully stopped")
}
