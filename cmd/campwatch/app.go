package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/brensch/campwatch/internal/config"
	"github.com/brensch/campwatch/internal/db"
	"github.com/brensch/campwatch/internal/monitor"
	"github.com/brensch/campwatch/internal/notify"
	"github.com/brensch/campwatch/internal/providers"
	"github.com/brensch/campwatch/internal/report"
	"github.com/brensch/campwatch/internal/web"
)

// app is everything a command needs, built once from config and flags.
type app struct {
	cfg      config.Config
	provider *providers.RecreationGov
	monitor  *monitor.Monitor
	store    *db.Store
	web      *web.Server
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

// loadConfig applies flag overrides on top of the environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if flagFacilitiesFile != "" {
		if cfg.Facilities, err = config.LoadFacilities(flagFacilitiesFile); err != nil {
			return config.Config{}, err
		}
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
	if flagWebAddr != "" {
		cfg.WebAddr = flagWebAddr
	}
	if len(flagFacilities) > 0 {
		selected := make([]config.Facility, 0, len(flagFacilities))
		for _, name := range flagFacilities {
			f, ok := cfg.Facility(name)
			if !ok {
				return config.Config{}, fmt.Errorf("unknown facility %q (known: %s)", name, facilityNames(cfg.Facilities))
			}
			selected = append(selected, f)
		}
		cfg.Facilities = selected
	}
	return cfg, cfg.Validate()
}

func facilityNames(fs []config.Facility) string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}

func newProvider(cfg config.Config) *providers.RecreationGov {
	monthDelay := cfg.MonthDelay
	if monthDelay == 0 {
		monthDelay = -1
	}
	return providers.NewRecreationGov(providers.Options{
		APIKey:              cfg.APIKey,
		RIDBBaseURL:         cfg.RIDBBaseURL,
		AvailabilityBaseURL: cfg.AvailabilityBaseURL,
		MonthDelay:          monthDelay,
		Timeout:             cfg.RequestTimeout,
	})
}

// newApp wires the provider, optional store, notifiers and web server into a
// monitor. The caller must call close.
func newApp(ctx context.Context, cfg config.Config, withNotifiers bool, onRun func([]report.Report)) (*app, error) {
	a := &app{cfg: cfg, provider: newProvider(cfg)}

	opts := monitor.Options{
		Facilities:     cfg.Facilities,
		IterationDelay: cfg.IterationDelay,
		OnRun:          onRun,
	}
	if cfg.DBPath != "" {
		store, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open db %s: %w", cfg.DBPath, err)
		}
		a.store = store
		opts.Store = store
	}
	if withNotifiers {
		n, err := buildNotifier(ctx, cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		if n != nil {
			opts.Notifier = n
		}
	}

	a.monitor = monitor.New(a.provider, opts)
	a.provider.SetLookupFunc(a.monitor.ObserveLookup)

	if cfg.WebAddr != "" {
		srv, err := web.NewServer(a.monitor, cfg.WebAddr)
		if err != nil {
			a.close()
			return nil, err
		}
		a.web = srv
		go func() {
			if err := srv.Run(ctx); err != nil {
				slog.Error("web server failed", slog.Any("err", err))
			}
		}()
	}
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("close db failed", slog.Any("err", err))
		}
	}
}

// buildNotifier returns nil when no destination is configured.
func buildNotifier(ctx context.Context, cfg config.Config) (notify.Notifier, error) {
	var out notify.Multi
	if cfg.SMS.Enabled() {
		out = append(out, notify.NewSMSGateway(cfg.SMS.Phone, cfg.SMS.Gateway, cfg.SMS.SMTPHost, cfg.SMS.SMTPPort, cfg.SMS.Username, cfg.SMS.Password))
	}
	if cfg.SNSPhone != "" {
		s, err := notify.NewSNS(ctx, cfg.SNSPhone)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if cfg.Discord.Token != "" {
		d, err := notify.NewDiscord(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, nil
	}
	names := make([]string, len(out))
	for i, n := range out {
		names[i] = n.Name()
	}
	slog.Info("notifications enabled", slog.String("notifiers", strings.Join(names, ",")))
	return out, nil
}
