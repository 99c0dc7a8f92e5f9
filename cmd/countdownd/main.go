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

	"countdown/internal/advance"
	"countdown/internal/clock"
	"countdown/internal/config"
	"countdown/internal/events"
	"countdown/internal/ics"
	appLog "countdown/internal/log"
	"countdown/internal/model"
	"countdown/internal/store"
	"countdown/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	dump       bool
}

func main() {
	appLog.Info("countdownd starting", "version", version)

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	clk := clock.New(conf.ReferenceOffset())

	appLog.Info("effective config",
		"listen", conf.Listen,
		"reference_zone", clk.Location().String(),
		"advance_cron", conf.AdvanceCron,
		"catalog_path", conf.CatalogPath,
		"store_driver", conf.Store.Driver,
		"once", flags.once,
		"dump", flags.dump,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	templates, err := loadTemplates(conf, clk.Location())
	if err != nil {
		appLog.Error("failed to load event catalog", err, "catalog_path", conf.CatalogPath)
		os.Exit(1)
	}

	st, err := store.Open(ctx, store.Options{
		Driver:     conf.Store.Driver,
		SQLitePath: conf.Store.SQLitePath,
		Redis: store.RedisOptions{
			Addr:     conf.Store.RedisAddr,
			Password: conf.Store.RedisPassword,
			DB:       conf.Store.RedisDB,
		},
	}, clk)
	if err != nil {
		appLog.Error("failed to open store", err, "driver", conf.Store.Driver)
		os.Exit(1)
	}
	defer st.Close()

	svc := advance.NewService(st, clk)

	if flags.once || flags.dump {
		if err := runOnce(ctx, svc, st, clk, templates, flags.dump); err != nil {
			appLog.Error("single run failed", err)
			os.Exit(1)
		}
		return
	}

	sched, err := advance.NewScheduler(ctx, conf.AdvanceCron, clk.Location(), svc, st)
	if err != nil {
		appLog.Error("failed to create scheduler", err)
		os.Exit(1)
	}

	// Catch up on anything that passed while the daemon was down.
	if n, err := svc.Sweep(ctx, st); err != nil {
		appLog.Warn("startup auto-advance finished with errors", "advanced", n, "err", err)
	} else {
		appLog.Info("startup auto-advance finished", "advanced", n)
	}
	sched.Start()

	srv := web.NewServer(web.Deps{Config: conf, Clock: clk, Store: st, Templates: templates})
	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			appLog.Error("HTTP server failed", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	<-sched.Stop().Done()

	appLog.Info("countdownd exiting")
}

// runOnce performs a single auto-advance sweep. With dump it also writes
// the upcoming events and stored countdowns to stdout as iCalendar.
func runOnce(ctx context.Context, svc *advance.Service, st store.Store, clk clock.Clock, templates []model.EventTemplate, dump bool) error {
	n, err := svc.Sweep(ctx, st)
	if err != nil {
		return err
	}
	appLog.Info("auto-advance sweep finished", "advanced", n)

	if !dump {
		return nil
	}
	countdowns, err := st.List(ctx)
	if err != nil {
		return fmt.Errorf("listing countdowns: %w", err)
	}
	instances := events.NewGenerator(clk).ProcessAll(templates)
	_, err = fmt.Fprint(os.Stdout, ics.Export(instances, countdowns, clk.Now()))
	return err
}

func loadTemplates(conf *config.Config, loc *time.Location) ([]model.EventTemplate, error) {
	if conf.CatalogPath == "" {
		return events.BuiltinCatalog(), nil
	}
	templates, err := events.LoadCatalog(conf.CatalogPath, loc)
	if err != nil {
		return nil, err
	}
	appLog.Info("event catalog loaded", "path", conf.CatalogPath, "templates", len(templates))
	return templates, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/countdown/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one auto-advance sweep and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "Run one sweep and print events and countdowns as iCalendar")

	flag.Parse()

	return cfg
}
