package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"examnotify/internal/app"
	"examnotify/internal/config"
	"examnotify/internal/feed"
	logx "examnotify/pkg/logx"
)

// Opts with all CLI options
type Opts struct {
	Config  string `short:"c" long:"config" env:"EXAMNOTIFY_CONFIG" default:"./config.yaml" description:"path to config file (yaml or json)"`
	EnvFile string `long:"env-file" default:".env" description:"dotenv file loaded before the config"`

	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	level := "info"
	if opts.Debug {
		level = "debug"
	}
	log := logx.NewConsole(level).With(logx.String("comp", "main"))

	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		log.Error("env file", logx.String("path", opts.EnvFile), logx.Err(err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ctx also bounds the startup probe, so a signal aborts it
	a, err := app.New(ctx, config.NewManager(opts.Config), app.Options{Version: revision, Debug: opts.Debug})
	if err != nil {
		var sce *feed.StartupConnectivityError
		if errors.As(err, &sce) {
			log.Error("telegram bot api unreachable", logx.Int("attempts", sce.Attempts), logx.Err(sce.Err))
		} else {
			log.Error("startup failed", logx.Err(err))
		}
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		log.Error("start failed", logx.Err(err))
		os.Exit(1)
	}

	// a.Done also closes on signal, since the app context derives from ctx
	<-a.Done()
	reason := app.StopSignal
	if err := a.Err(); err != nil && ctx.Err() == nil {
		reason = app.StopFatalError
		log.Error("fatal", logx.Err(err))
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		os.Exit(1)
	}
}
