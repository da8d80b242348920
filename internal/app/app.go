// Package app wires the polling pipeline together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"examnotify/internal/config"
	"examnotify/internal/cycle"
	"examnotify/internal/dedup"
	"examnotify/internal/eventbus"
	"examnotify/internal/notifier"
	"examnotify/internal/observability/status"
	"examnotify/internal/runtime/supervisor"
	"examnotify/internal/source"
	"examnotify/internal/storage"
	"examnotify/internal/task/scheduler"
	kit "examnotify/internal/transport"
	telegram "examnotify/internal/transport/telegram/adapter"
	logx "examnotify/pkg/logx"
	"examnotify/pkg/systemd"
)

const appName = "examnotify"

// Options are process-level settings that do not live in the config file.
type Options struct {
	Version string
	// Debug forces debug logging regardless of logging.level.
	Debug bool
	// HTTPClient is used for feed fetches; nil means a default client.
	HTTPClient *http.Client
}

type App struct {
	cfgm *config.Manager
	opts Options
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   *eventbus.MemBus
	store storage.Store

	tg     *telegram.Adapter
	engine *dedup.Engine
	notif  *notifier.Service
	runner *cycle.Runner
	sched  *scheduler.Service
	status *status.Service
	sd     *systemd.Notifier
}

// New loads the config, proves the bot token with getMe and builds every
// component. Nothing runs until Start. A failed Bot API probe returns a
// *feed.StartupConnectivityError.
func New(ctx context.Context, cfgm *config.Manager, opts Options) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// map everything first so a bad value fails before any network call
	tcfg, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	fcfg, err := mapFetchConfig(cfg)
	if err != nil {
		return nil, err
	}
	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	ccfg, err := mapCycleConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedule, runTimeout, err := mapSchedule(cfg)
	if err != nil {
		return nil, err
	}
	scfg, storageOn, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	target, err := kit.ParseChatTarget(cfg.Telegram.Channel, cfg.Telegram.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("telegram.channel: %w", err)
	}

	logCfg := logConfig(cfg, opts.Debug)
	bootLog := logx.NewConsole(logCfg.Level).With(logx.String("comp", "telegram"))
	tg, err := telegram.New(ctx, tcfg, bootLog)
	if err != nil {
		return nil, err
	}

	// Telegram forwarding starts disabled so Apply doesn't warn before the
	// ops chat is set.
	baseLogCfg := logCfg
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, tg)
	setLogTarget(logSvc, cfg, log)
	logSvc.Apply(logCfg)

	a := &App{
		cfgm:   cfgm,
		opts:   opts,
		log:    log.With(logx.String("comp", "app")),
		logs:   logSvc,
		bus:    eventbus.New(),
		tg:     tg,
		engine: dedup.New(),
		sd:     systemd.New(log.With(logx.String("comp", "systemd"))),
	}

	if storageOn {
		st, err := storage.Open(scfg, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", scfg.Driver))
	}

	fetcher := source.NewFetcher(fcfg, opts.HTTPClient, log.With(logx.String("comp", "fetch")))
	src := source.New(fetcher, feedURLs(cfg), log.With(logx.String("comp", "source")))
	a.notif = notifier.New(ncfg, tg, target, log.With(logx.String("comp", "notifier")), a.bus)
	a.runner = cycle.New(ccfg, src, a.engine, a.notif, log.With(logx.String("comp", "cycle")), a.bus)

	a.sched = scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, log.With(logx.String("comp", "scheduler")), a.bus)
	if _, err := a.sched.AddSchedule(pollSchedule, schedule, runTimeout, a.runner.Job); err != nil {
		a.closeEarly()
		return nil, fmt.Errorf("scheduler.schedule: %w", err)
	}

	if cfg.Status.Enabled {
		a.status = status.New(mapStatusConfig(cfg),
			status.AppInfo{Name: appName, Author: appName, Version: opts.Version},
			statusProvider{a: a},
			log.With(logx.String("comp", "status")))
	}
	return a, nil
}

func (a *App) closeEarly() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
}

func logConfig(cfg *config.Config, debug bool) logx.Config {
	lc := mapLogConfig(cfg)
	if debug {
		lc.Level = "debug"
	}
	return lc
}

// setLogTarget points forwarded log records at logging.telegram.chat.
// An empty chat clears the target.
func setLogTarget(logs *logx.Service, cfg *config.Config, log logx.Logger) {
	chat := strings.TrimSpace(cfg.Logging.Telegram.Chat)
	if chat == "" {
		logs.SetTelegramTarget(kit.ChatTarget{})
		return
	}
	to, err := kit.ParseChatTarget(chat, 0)
	if err != nil {
		log.Warn("invalid logging.telegram.chat; forwarding disabled", logx.Err(err))
		logs.SetTelegramTarget(kit.ChatTarget{})
		return
	}
	logs.SetTelegramTarget(to)
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start begins scheduling. When scheduler.run_on_start is set the first
// cycle is triggered right away through the same gate as cron.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	cfg := a.cfgm.Get()

	if a.store != nil {
		events, unsub := a.bus.Subscribe(256)
		auditLog := a.log.With(logx.String("comp", "audit"))
		a.sup.Go0("storage.audit", func(c context.Context) {
			defer unsub()
			runAudit(c, events, a.store, auditLog)
		})
	}

	// debug trace of pipeline events
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.sched.Start(a.sup.Context())
	if a.status != nil {
		a.status.Start(a.sup.Context())
	}

	if cfg.Scheduler.RunOnStart {
		a.sup.Go0("poll.startup", func(c context.Context) {
			ran, err := a.sched.RunNow(c, pollSchedule)
			switch {
			case err != nil && c.Err() == nil:
				a.log.Warn("startup cycle failed", logx.Err(err))
			case !ran:
				a.log.Debug("startup cycle skipped; a cycle is already running")
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go0("systemd.watchdog", a.sd.RunWatchdog)

	a.sd.Ready()
	a.sd.Status("polling " + cfg.Scheduler.Schedule)
	a.log.Info("app started",
		logx.String("channel", a.notif.Target().String()),
		logx.String("schedule", cfg.Scheduler.Schedule),
		logx.String("bot", "@"+a.tg.Username()),
	)
	return nil
}

// reloadLoop applies hot-reloadable sections. Sections that only take
// effect after a restart are reported and left alone.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	changed, restart, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.String("sections", strings.Join(restart, ",")))
	}

	setLogTarget(a.logs, newCfg, a.log)
	a.logs.Apply(logConfig(newCfg, a.opts.Debug))

	a.sched.Apply(scheduler.Config{Timezone: newCfg.Scheduler.Timezone})
	if schedule, timeout, err := mapSchedule(newCfg); err != nil {
		a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
	} else if err := a.sched.Reschedule(pollSchedule, schedule, timeout); err != nil {
		a.log.Warn("reschedule failed; keeping previous", logx.Err(err))
	} else {
		a.sd.Status("polling " + schedule)
	}

	if ncfg, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}
	if ccfg, err := mapCycleConfig(newCfg); err != nil {
		a.log.Warn("invalid delivery config; keeping previous", logx.Err(err))
	} else {
		a.runner.Apply(ccfg)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop cancels the run context and shuts components down in order. An
// in-flight cycle is interrupted and commits only the items it attempted.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeEarly()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.Stopping()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			// respect the caller's deadline; never extend it
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		var cancel context.CancelFunc
		if max > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("status", 2*time.Second, func(c context.Context) error {
		if a.status != nil {
			a.status.Stop(c)
		}
		return nil
	})
	// audit writer must be gone before the store closes
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
