// Package app wires the pipeline together: config, logging, delivery log,
// settings, transport, dispatcher, HTTP surface and the failure digest.
package app

import (
	"context"
	"time"

	"tokobot/internal/auditlog"
	"tokobot/internal/config"
	"tokobot/internal/digest"
	"tokobot/internal/httpapi"
	"tokobot/internal/notify"
	"tokobot/internal/settings"
	"tokobot/internal/transport/telegram"
	"tokobot/internal/webhook"
	logx "tokobot/pkg/logx"
)

type App struct {
	cfgm   *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store  auditlog.Store
	server *httpapi.Server
	digest *digest.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	storeCfg, err := storageConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	store, err := auditlog.Open(storeCfg, log.With(logx.String("comp", "auditlog")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	settingsPath := cfg.Settings.Path
	if settingsPath == "" {
		settingsPath = "./settings.yaml"
	}
	sp, err := settings.NewFileProvider(settingsPath)
	if err != nil {
		closeStore(store, log)
		logSvc.Close()
		return nil, err
	}

	sendTimeout, err := config.ParseDurationOrDefault("dispatch.send_timeout", cfg.Dispatch.SendTimeout, 0)
	if err != nil {
		closeStore(store, log)
		logSvc.Close()
		return nil, err
	}

	sender := telegram.New(log.With(logx.String("comp", "telegram")))
	dispatcher := notify.NewDispatcher(notify.Config{
		SendTimeout: sendTimeout,
		RatePerSec:  cfg.Dispatch.RatePerSec,
	}, sp, store, sender, log.With(logx.String("comp", "notify")))
	resender := notify.NewResender(dispatcher)

	router := webhook.NewRouter(dispatcher, log.With(logx.String("comp", "webhook")))

	srvCfg, err := serverConfig(cfg)
	if err != nil {
		closeStore(store, log)
		logSvc.Close()
		return nil, err
	}
	server := httpapi.NewServer(srvCfg, router, dispatcher, resender, sp, sender,
		log.With(logx.String("comp", "http")))

	digCfg, err := digestConfig(cfg)
	if err != nil {
		closeStore(store, log)
		logSvc.Close()
		return nil, err
	}
	dig := digest.New(digCfg, store, dispatcher, log.With(logx.String("comp", "digest")))

	// Logging follows the config file; everything else reads its own state
	// fresh per call or is fixed for the process lifetime.
	cfgm.OnChange(func(c *config.Config) {
		logSvc.Apply(logx.Config{
			Level:   c.Logging.Level,
			Console: c.Logging.Console,
			File: logx.FileConfig{
				Enabled: c.Logging.File.Enabled,
				Path:    c.Logging.File.Path,
			},
		})
	})

	return &App{
		cfgm:   cfgm,
		logSvc: logSvc,
		log:    log,
		store:  store,
		server: server,
		digest: dig,
	}, nil
}

// Run blocks until ctx is cancelled or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	go func() {
		if err := a.cfgm.Watch(ctx); err != nil {
			a.log.Warn("config watch exited", logx.Err(err))
		}
	}()

	if err := a.digest.Start(ctx); err != nil {
		a.close()
		return err
	}

	err := a.server.Run(ctx)

	a.digest.Stop()
	a.close()
	return err
}

func (a *App) close() {
	closeStore(a.store, a.log)
	a.logSvc.Close()
}

func closeStore(store auditlog.Store, log logx.Logger) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Warn("closing delivery log failed", logx.Err(err))
	}
}

func storageConfig(cfg *config.Config) (auditlog.Config, error) {
	if cfg.Storage == nil {
		return auditlog.Config{}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return auditlog.Config{}, err
	}
	return auditlog.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func serverConfig(cfg *config.Config) (httpapi.Config, error) {
	reqTimeout, err := config.ParseDurationOrDefault("server.request_timeout", cfg.Server.RequestTimeout, 0)
	if err != nil {
		return httpapi.Config{}, err
	}
	shutTimeout, err := config.ParseDurationOrDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout, 0)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Addr:            cfg.Server.Addr,
		RequestTimeout:  reqTimeout,
		ShutdownTimeout: shutTimeout,
	}, nil
}

func digestConfig(cfg *config.Config) (digest.Config, error) {
	if cfg.Digest == nil {
		return digest.Config{}, nil
	}
	window, err := config.ParseDurationOrDefault("digest.window", cfg.Digest.Window, 24*time.Hour)
	if err != nil {
		return digest.Config{}, err
	}
	return digest.Config{
		Enabled:  cfg.Digest.Enabled,
		Schedule: cfg.Digest.Schedule,
		Window:   window,
		MaxIDs:   cfg.Digest.MaxIDs,
	}, nil
}
