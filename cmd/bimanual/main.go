// Command bimanual records bimanual reach-grasp-trigger trials from the
// motion tracker, analyses each one as it finishes and serves the stored
// sessions over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/bimanual.report/internal/acquisition"
	"github.com/banshee-data/bimanual.report/internal/api"
	"github.com/banshee-data/bimanual.report/internal/config"
	"github.com/banshee-data/bimanual.report/internal/db"
	"github.com/banshee-data/bimanual.report/internal/kinematics"
	"github.com/banshee-data/bimanual.report/internal/monitoring"
	"github.com/banshee-data/bimanual.report/internal/serialmux"
	"github.com/banshee-data/bimanual.report/internal/store"
	"github.com/banshee-data/bimanual.report/internal/version"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// A missing .env is normal; variables may come from the service unit.
	_ = godotenv.Load()

	var (
		listen        = flag.String("listen", envOr("BIMANUAL_LISTEN", ":8080"), "HTTP listen address")
		port          = flag.String("port", envOr("BIMANUAL_PORT", "/dev/ttyUSB0"), "Tracker serial port")
		baud          = flag.Int("baud", serialmux.DefaultBaudRate, "Tracker baud rate")
		replay        = flag.String("replay", "", "Replay a recorded tracker stream instead of opening the port")
		disableSerial = flag.Bool("disable-serial", false, "Run without a tracker: browse and re-analyse stored sessions only")
		dbPath        = flag.String("db", envOr("BIMANUAL_DB", "bimanual.db"), "SQLite database path")
		configPath    = flag.String("config", envOr("BIMANUAL_CONFIG", ""), "Tuning config JSON (defaults are built in)")
		debug         = flag.Bool("debug", false, "Log every skipped tracker line")
		showVersion   = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("bimanual %s\n", version.String())
		return
	}
	monitoring.SetVerbose(*debug)

	tuning := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}
	th, err := kinematics.ThresholdsFromTuning(tuning)
	if err != nil {
		log.Fatalf("invalid tuning config: %v", err)
	}
	pipeline, err := kinematics.NewPipeline(th, tuning.GetWorkers())
	if err != nil {
		log.Fatalf("failed to build analysis pipeline: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	st := store.New(database, pipeline)

	trackerMux, err := openTracker(*disableSerial, *replay, *port, *baud, th.SampleRate)
	if err != nil {
		log.Fatalf("failed to open tracker: %v", err)
	}
	defer trackerMux.Close()
	if err := trackerMux.Initialise(); err != nil {
		log.Fatalf("failed to initialise tracker: %v", err)
	}

	var recorder *acquisition.Recorder
	if !*disableSerial {
		recorder, err = acquisition.NewRecorder(acquisition.Config{
			SampleRate: th.SampleRate,
			Timeout:    tuning.GetTrialTimeout(),
		}, st)
		if err != nil {
			log.Fatalf("failed to create recorder: %v", err)
		}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := trackerMux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("tracker monitor stopped: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, lines := trackerMux.Subscribe()
			defer trackerMux.Unsubscribe(id)
			if err := recorder.Run(ctx, lines); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("recorder stopped: %v", err)
			}
			log.Print("recorder routine terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(trackerMux, st, recorder).ServeMux()
		trackerMux.AttachAdminRoutes(mux)
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("database admin routes disabled: %v", err)
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// openTracker picks the tracker source: none, a replayed capture paced at
// the sample rate, or the real serial port.
func openTracker(disabled bool, replay, port string, baud, sampleRate int) (serialmux.SerialMuxInterface, error) {
	switch {
	case disabled:
		log.Print("serial disabled: recording is off")
		return serialmux.NewDisabledSerialMux(), nil
	case replay != "":
		f, err := os.Open(replay)
		if err != nil {
			return nil, err
		}
		// Two sensor lines per frame.
		interval := time.Second / time.Duration(2*sampleRate)
		log.Printf("replaying %s at %s per line", replay, interval)
		return serialmux.NewReplaySerialMux(f, interval), nil
	default:
		m, err := serialmux.NewRealSerialMux(port, serialmux.PortOptions{BaudRate: baud})
		if err != nil {
			return nil, err
		}
		log.Printf("opened tracker on %s", port)
		return m, nil
	}
}
