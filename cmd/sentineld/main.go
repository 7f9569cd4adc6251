// Command sentineld is the monitoring daemon: it loads a control file of
// service definitions, runs the validation cycle and optional heartbeat
// push on a schedule, and serves no HTTP control surface of its own (spec
// §1 — the listener is external; the control protocol's client side lives
// in sentinelctl, via internal/controlclient).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/asydsolutions/sentinel/internal/config"
	"github.com/asydsolutions/sentinel/internal/daemon"
	"github.com/asydsolutions/sentinel/internal/engine"
	"github.com/asydsolutions/sentinel/internal/heartbeat"
	"github.com/asydsolutions/sentinel/internal/monittime"
	"github.com/asydsolutions/sentinel/internal/statestore"
	"github.com/asydsolutions/sentinel/pkg/logger"
)

func main() {
	controlFile := flag.String("c", "", "control file (overrides SENTINEL_CONTROL_FILE)")
	pidFile := flag.String("p", "", "pid file (overrides SENTINEL_PID_FILE)")
	stateFile := flag.String("s", "", "state file (overrides SENTINEL_STATE_FILE)")
	pollSeconds := flag.Int("d", 0, "poll interval in seconds, implies daemonize (overrides SENTINEL_POLL_TIME)")
	foreground := flag.Bool("I", false, "run in the foreground (do not detach)")
	validateOnly := flag.Bool("t", false, "validate the control file and exit")
	debugLevel := flag.String("v", "", "log level: error, warn, info, debug")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sentineld: config:", err)
		os.Exit(1)
	}
	applyFlags(cfg, *controlFile, *pidFile, *stateFile, *pollSeconds, *debugLevel)

	if *validateOnly {
		if err := config.ValidateControlFile(cfg.ControlFile); err != nil {
			fmt.Fprintln(os.Stderr, "sentineld: invalid control file:", err)
			os.Exit(1)
		}
		fmt.Println("control file OK")
		return
	}

	log := logger.New(logger.Config{Level: cfg.DebugLevel, Pretty: *foreground})
	log.Info().
		Str("control_file", cfg.ControlFile).
		Str("started_at", monittime.StampUTC(time.Now())).
		Msg("starting sentineld")

	services, err := config.LoadServices(cfg.ControlFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load control file")
	}

	ctx := context.Background()

	var store *statestore.Store
	if cfg.StateFile != "" {
		var mirror *statestore.MirrorConfig
		if cfg.R2Bucket != "" {
			mirror = &statestore.MirrorConfig{
				EndpointURL:     cfg.R2EndpointURL,
				Bucket:          cfg.R2Bucket,
				AccessKeyID:     cfg.R2AccessKeyID,
				SecretAccessKey: cfg.R2SecretKey,
			}
		}
		store, err = statestore.Open(ctx, statestore.Config{Path: cfg.StateFile, Mirror: mirror}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open state store")
		}
		defer store.Close()
	}

	e := engine.New(services, store, cfg.PollTime, log)

	if store != nil {
		if err := store.Load(ctx, e.Table); err != nil {
			log.Warn().Err(err).Msg("failed to reload persisted state, starting fresh")
		}
	}

	id, err := daemon.Identity(cfg.IDFile)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load daemon identity")
		id = "unknown"
	}

	var hb *heartbeat.Worker
	if len(cfg.CollectorURLs) > 0 {
		hb, err = heartbeat.New("@every 1m", cfg.CollectorURLs, func() heartbeat.Snapshot {
			return e.Snapshot(id)
		}, heartbeat.WebsocketSend, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to configure heartbeat, continuing without it")
			hb = nil
		}
	}

	d := &daemon.Daemon{
		Engine:     e,
		Heartbeat:  hb,
		PidFile:    cfg.PidFile,
		StartDelay: cfg.StartDelay,
		OnReload: func() {
			reloaded, err := config.LoadServices(cfg.ControlFile)
			if err != nil {
				log.Error().Err(err).Msg("reload failed, keeping current configuration")
				return
			}
			e.Reload(reloaded)
			log.Info().Int("services", len(reloaded)).Msg("control file re-read")
		},
		Log: log,
	}

	if err := d.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("daemon exited with error")
	}
	log.Info().Msg("sentineld stopped")
}

func applyFlags(cfg *config.Config, controlFile, pidFile, stateFile string, pollSeconds int, debugLevel string) {
	if controlFile != "" {
		cfg.ControlFile = controlFile
	}
	if pidFile != "" {
		cfg.PidFile = pidFile
	}
	if stateFile != "" {
		cfg.StateFile = stateFile
	}
	if pollSeconds > 0 {
		cfg.PollTime = time.Duration(pollSeconds) * time.Second
		cfg.Daemonize = true
	}
	if debugLevel != "" {
		cfg.DebugLevel = debugLevel
	}
}
