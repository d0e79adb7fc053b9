package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pablolion/acd/internal/actor"
	"github.com/pablolion/acd/internal/config"
	"github.com/pablolion/acd/internal/ipcserver"
	"github.com/pablolion/acd/internal/lifecycle"
	"github.com/pablolion/acd/internal/platform"
	"github.com/pablolion/acd/internal/usage"
)

// claudeUsageEndpoint is the vendor API the usage fetcher polls (spec §4.6).
const claudeUsageEndpoint = "https://api.anthropic.com/v1/oauth/usage"

func newDaemonCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the Agent Console Dashboard daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), flags)
		},
	}
}

func runDaemon(ctx context.Context, flags *globalFlags) error {
	cfgPath := flags.resolveConfigPath()
	sockPath := flags.resolveSocketPath()
	pidPath := platform.PIDFilePath()

	cfg, warnings, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Daemon.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Daemon.LogFile != "" {
		f, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	lock, ok, err := lifecycle.Acquire(pidPath)
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another acd daemon is already running (pid file %s is locked)", pidPath)
	}
	defer lock.Release()

	ln, err := ipcserver.Listen(sockPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", sockPath, err)
	}

	fetcher := usage.NewHTTPFetcher(claudeUsageEndpoint, usage.EnvCredentialSource{})

	act := actor.New(cfg, cfgPath, fetcher, log, os.Getpid())
	srv := ipcserver.New(ln, act, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go srv.Serve()

	watcher, watcherErr := startConfigWatcher(cfgPath, act, log)
	if watcherErr != nil {
		log.WithError(watcherErr).Warn("config hot-reload watcher disabled")
	} else if watcher != nil {
		defer watcher.Close()
	}

	signals, stopSignals := lifecycle.Watch()
	defer stopSignals()
	go watchSignals(runCtx, signals, act, log)

	log.WithField("socket", sockPath).Info("acd daemon started")
	reason := act.Run(runCtx)
	log.WithField("reason", reason).Info("acd daemon stopping")

	srv.Shutdown()
	drained := make(chan struct{})
	go func() {
		srv.Wait()
		close(drained)
	}()
	lifecycle.GracefulShutdown(ctx, drained, sockPath, lock)
	return nil
}

func watchSignals(ctx context.Context, signals lifecycle.Signals, act *actor.Actor, log *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals.Shutdown:
			log.Info("received shutdown signal")
			reply := make(chan actor.Result, 1)
			act.Inbound() <- actor.Message{Kind: actor.KindStop, Reply: reply}
			<-reply
			return
		case <-signals.Reload:
			log.Info("received SIGHUP, reloading config")
			reply := make(chan actor.Result, 1)
			act.Inbound() <- actor.Message{Kind: actor.KindReload, Reply: reply}
			<-reply
		}
	}
}

// startConfigWatcher watches the config file's directory (not the file
// itself, since editors replace-and-rename) and posts a Reload command to
// the actor whenever the config path's contents change (spec §4.1: config
// hot reload on file change).
func startConfigWatcher(cfgPath string, act *actor.Actor, log *logrus.Logger) (*fsnotify.Watcher, error) {
	dir := filepath.Dir(cfgPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(cfgPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				reply := make(chan actor.Result, 1)
				act.Inbound() <- actor.Message{Kind: actor.KindReload, Reply: reply}
				<-reply
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config watcher error")
			}
		}
	}()
	return watcher, nil
}
