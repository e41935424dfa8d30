// simrig is a headless driver for the race simulation core: it loads a
// course, joins a party server when credentials are present, and runs
// the vehicle down the route with an autopilot input source. Useful for
// soak-testing a sync server and for generating telemetry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/apexline/simcore/internal/config"
	"github.com/apexline/simcore/internal/database"
	"github.com/apexline/simcore/internal/events"
	"github.com/apexline/simcore/internal/geo"
	"github.com/apexline/simcore/internal/input"
	"github.com/apexline/simcore/internal/logging"
	intOtel "github.com/apexline/simcore/internal/otel"
	"github.com/apexline/simcore/internal/results"
	"github.com/apexline/simcore/internal/session"
	"github.com/apexline/simcore/internal/sim"
	"github.com/apexline/simcore/internal/telemetry"
)

// Version can be set at build time via ldflags.
var Version = "0.1.0"

const tokenEnv = "SIMRIG_TOKEN"

// autopilot holds the throttle down. Good enough to complete any course
// whose first segment points at the finish; steering sources plug in
// through the same interface.
type autopilot struct{}

func (autopilot) Read() input.Controls { return input.Controls{Forward: true} }

func main() {
	var (
		configDir  = flag.String("config", ".", "directory containing simcore.cfg.json")
		coursePath = flag.String("course", "course.json", "course definition file")
		userID     = flag.Int("user", 0, "user id for the party session (0 = offline)")
		partyID    = flag.Int("party", 0, "party id to join (0 = none)")
		runFor     = flag.Duration("for", 0, "stop after this duration (0 = until signal)")
	)
	flag.Parse()

	sessionStart := time.Now()

	slogMgr := logging.NewSlogManager()
	slogMgr.Setup(nil, "info", nil)
	logger := slogMgr.Logger()

	if err := config.Load(*configDir); err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		logger.Error("cannot create logs directory", "path", logsDir, "error", err)
		os.Exit(1)
	}
	logPath := logging.LogFilePath(logsDir, "simrig", sessionStart)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		logger.Error("cannot open log file", "path", logPath, "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	var otelProvider *intOtel.Provider
	var logProvider *sdklog.LoggerProvider
	if config.GetBool("otel.enabled") {
		otelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      true,
			ServiceName:  "simrig",
			BatchTimeout: 5 * time.Second,
			LogWriter:    logFile,
			Endpoint:     config.GetString("otel.endpoint"),
			Insecure:     config.GetBool("otel.insecure"),
		})
		if err != nil {
			logger.Error("otel provider init failed", "error", err)
		} else {
			logProvider = otelProvider.LoggerProvider()
		}
	}

	level := config.GetString("logLevel")
	var gelf *logging.GelfHandler
	if config.GetBool("graylog.enabled") {
		gelf, err = logging.NewGelfHandler(config.GetString("graylog.address"), level)
		if err != nil {
			logger.Error("graylog handler init failed", "error", err)
			gelf = nil
		}
	}
	if gelf != nil {
		slogMgr.Setup(logFile, level, logProvider, gelf)
	} else {
		slogMgr.Setup(logFile, level, logProvider)
	}
	logger = slogMgr.Logger()
	logger.Info("simrig starting", "version", Version, "logs", logPath)

	raceCfg := config.GetRaceConfig()
	course, err := config.LoadCourse(*coursePath, raceCfg)
	if err != nil {
		logger.Error("cannot load course", "path", *coursePath, "error", err)
		os.Exit(1)
	}
	var routeMeters float64
	wps := course.Waypoints()
	for i := 1; i < len(wps); i++ {
		routeMeters += geo.MetricDistance(wps[i-1], wps[i])
	}
	logger.Info("course loaded", "name", course.Name,
		"checkpoints", len(course.Checkpoints), "halfWidth", course.HalfWidth,
		"lengthMeters", routeMeters)

	zlog := zerolog.New(logFile).With().Timestamp().Logger()

	// Results store: failure is tolerated, racing just won't persist.
	var sink sim.ResultSink
	resultsCfg := config.GetResultsConfig()
	dbm := database.NewManager(zlog, resultsCfg.Path)
	if err := dbm.Connect(); err != nil {
		logger.Error("results store unavailable", "error", err)
	} else {
		store, err := results.NewStore(dbm.DB)
		if err != nil {
			logger.Error("results schema migration failed", "error", err)
		} else {
			sink = store
			defer dbm.Close()
		}
	}

	var tel *telemetry.Manager
	if config.GetBool("influx.enabled") {
		tel = telemetry.NewManager(zlog, filepath.Join(logsDir, "telemetry.lp.gz"))
		if err := tel.Connect(); err != nil {
			logger.Warn("telemetry disabled", "error", err)
			tel = nil
		} else {
			defer tel.Close()
		}
	}

	stream := events.NewStream()
	sessionCfg := config.GetSessionConfig()

	var syncClient sim.SyncClient
	var client *session.Client
	if *userID > 0 {
		client, err = session.NewClient(session.Config{
			ServerURL:         sessionCfg.ServerURL,
			Credentials:       session.StaticToken(os.Getenv(tokenEnv)),
			HeartbeatInterval: sessionCfg.HeartbeatInterval,
			ReconnectBackoff:  sessionCfg.ReconnectBackoff,
			MaxReconnects:     sessionCfg.MaxReconnects,
		}, stream, logger)
		if err != nil {
			logger.Error("session client init failed", "error", err)
			os.Exit(1)
		}
		if err := client.Connect(*userID, *partyID); err != nil {
			logger.Error("session connect failed, running offline", "error", err)
			client = nil
		} else {
			syncClient = client
			defer client.Disconnect()
		}
	}

	loop := sim.NewLoop(sim.Config{
		Course:            course,
		CorridorHalfWidth: course.HalfWidth,
		UserID:            *userID,
		UpdateRate:        sessionCfg.UpdateRate,
		WarnDuration:      2 * time.Second,
	}, syncClient, autopilot{}, stream, logger)
	loop.SetResultSink(sink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}
	raceCtx, raceDone := context.WithCancel(ctx)
	defer raceDone()

	loop.StartRace()

	var tick int
	err = loop.Run(raceCtx, 16*time.Millisecond, func(rep sim.Report) {
		tick++
		if tel != nil && tick%60 == 0 {
			point := telemetry.TickPoint(course.Name, *userID, rep.Vehicle, rep.Progress)
			if err := tel.WritePoint(raceCtx, telemetry.BucketRace, point); err != nil {
				logger.Debug("telemetry write failed", "error", err)
			}
		}
		for _, ev := range rep.Events {
			switch e := ev.(type) {
			case events.CheckpointPassed:
				logger.Info("checkpoint passed", "index", e.Index)
			case events.RaceComplete:
				logger.Info("race complete", "elapsed", e.Elapsed)
				if client != nil {
					hud := loop.OffTrackCount()
					logger.Info("run summary", "offTrack", hud, "roster", client.Roster().Len())
				}
				// Let the final pose broadcast drain, then stop.
				go func() {
					time.Sleep(time.Second)
					raceDone()
				}()
			case events.StatusChanged:
				logger.Info("connection status", "status", e.Status)
				if tel != nil && client != nil {
					point := telemetry.SessionPoint(*userID, e.Status, client.Roster().Len())
					_ = tel.WritePoint(raceCtx, telemetry.BucketSession, point)
				}
			case events.RosterJoined:
				logger.Info("party member joined", "userId", e.UserID, "name", e.Name)
			case events.RosterLeft:
				logger.Info("party member left", "userId", e.UserID)
			case events.OffTrackEntered:
				logger.Warn("off track")
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("simulation loop stopped", "error", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := slogMgr.Flush(flushCtx); err != nil {
		fmt.Fprintf(os.Stderr, "log flush failed: %v\n", err)
	}
	if otelProvider != nil {
		_ = otelProvider.Shutdown(flushCtx)
	}
	if gelf != nil {
		_ = gelf.Close()
	}
	logger.Info("simrig stopped")
}
