package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/lightskin/internal/config"
	"github.com/banshee-data/lightskin/internal/db"
	"github.com/banshee-data/lightskin/internal/live"
	"github.com/banshee-data/lightskin/internal/monitoring"
	"github.com/banshee-data/lightskin/internal/serialmux"
	"github.com/banshee-data/lightskin/internal/skin"
	"github.com/banshee-data/lightskin/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Replay -fixture instead of reading the serial port")
	disableSerial = flag.Bool("disable-serial", false, "Run without skin hardware")
	listen        = flag.String("listen", ":8080", "Listen address")
	port          = flag.String("port", "/dev/ttyUSB0", "Serial port to use (ignored in dev mode)")
	fixture       = flag.String("fixture", "fixtures/snapshot.txt", "Snapshot replayed in dev mode")
	replayEvery   = flag.Duration("replay-interval", 500*time.Millisecond, "Interval between replayed snapshots in dev mode")
	emittersPath  = flag.String("emitters", "fixtures/emitters.csv", "CSV of emitter x,y positions")
	sensorsPath   = flag.String("sensors", "fixtures/sensors.csv", "CSV of sensor x,y positions")
	configPath    = flag.String("config", "", "Tuning config JSON (defaults to "+config.DefaultConfigPath+")")
	dbPath        = flag.String("db", "lightskin.db", "Database file")
	resumeFrom    = flag.String("calibration-session", "", "Restore the calibration saved by this session instead of calibrating on the first frame")
	debug         = flag.Bool("debug", false, "Log every reconstruction")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		log.Printf("lightskin %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *debug {
		monitoring.SetDebugLogger(log.Printf)
	}

	cfg := config.MustLoadDefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	layout, err := skin.LoadLayout(*emittersPath, *sensorsPath)
	if err != nil {
		log.Fatalf("failed to load layout: %v", err)
	}
	geom, err := cfg.Geometry(layout.Area())
	if err != nil {
		log.Fatalf("invalid grid: %v", err)
	}
	model, err := cfg.NewModel(geom)
	if err != nil {
		log.Fatalf("failed to create influence model: %v", err)
	}

	sensor := skin.NewHardwareSensor(layout)
	calibration := skin.NewSnapshotCalibration(layout, sensor)
	engine, err := cfg.NewEngine(layout, model, sensor, calibration)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	log.Printf("%d emitters, %d sensors, %s engine on %s", len(layout.Emitters), len(layout.Sensors), engine.Name(), geom)

	m := openSerial(cfg)
	defer m.Close()
	if err := m.Initialize(); err != nil {
		log.Fatalf("failed to initialize device: %v", err)
	}

	store, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	session := &db.Session{
		Emitters:       len(layout.Emitters),
		Sensors:        len(layout.Sensors),
		CellsX:         geom.CellsX,
		CellsY:         geom.CellsY,
		Algorithm:      engine.Name(),
		InfluenceModel: cfg.GetInfluenceModel(),
	}
	if err := store.CreateSession(session); err != nil {
		log.Fatalf("failed to create session: %v", err)
	}
	log.Printf("session %s", session.ID)
	defer func() {
		if err := store.EndSession(session.ID, time.Now()); err != nil {
			log.Printf("failed to end session: %v", err)
		}
	}()

	if *resumeFrom != "" {
		values, err := store.LatestCalibration(*resumeFrom)
		if err != nil {
			log.Fatalf("failed to load calibration: %v", err)
		}
		if err := calibration.Restore(values); err != nil {
			log.Fatalf("failed to restore calibration: %v", err)
		}
		log.Printf("restored calibration from session %s", *resumeFrom)
	}

	recomputer := live.NewRecomputer(engine, live.RecomputerConfig{Debounce: cfg.GetRecomputeDebounce()})
	saveCalibration := func() error {
		_, err := store.SaveCalibration(session.ID, calibration.Values())
		return err
	}
	sensor.OnFrame(func(f skin.Frame) {
		if calibration.EnsureCalibrated() {
			log.Printf("calibrated from snapshot %d", f.Seq)
			if err := saveCalibration(); err != nil {
				log.Printf("failed to save calibration: %v", err)
			}
		}
		recomputer.Trigger()
	})

	selection := skin.NewSelection()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// assemble snapshots from the serial lines
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, lines := m.Subscribe()
		defer m.Unsubscribe(id)
		if err := sensor.Run(ctx, lines); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("snapshot reader stopped: %v", err)
		}
		log.Printf("snapshot routine terminated")
	}()

	// store every reconstruction
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, results := recomputer.Results().Subscribe()
		defer recomputer.Results().Unsubscribe(id)
		for {
			select {
			case res := <-results:
				if err := store.RecordReconstruction(toRecord(session.ID, res)); err != nil {
					log.Printf("failed to record reconstruction %d: %v", res.Seq, err)
				}
			case <-ctx.Done():
				log.Printf("store routine terminated")
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		id, changes := selection.Changes().Subscribe()
		defer selection.Changes().Unsubscribe(id)
		for {
			select {
			case c := <-changes:
				log.Printf("selected %s %d (was %d)", c.What, c.New, c.Old)
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := recomputer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("recompute loop stopped: %v", err)
		}
		log.Printf("recompute routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		m.AttachAdminRoutes(mux)
		store.AttachAdminRoutes(mux)
		(&debugServer{
			layout:    layout,
			model:     model,
			results:   recomputer,
			selection: selection,
			recalibrate: func() error {
				calibration.Calibrate()
				recomputer.Trigger()
				return saveCalibration()
			},
		}).attach(mux)

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			monitoring.Debugf("got request %q", r.URL.Path)
			mux.ServeHTTP(w, r)
		})

		server := &http.Server{
			Addr:    *listen,
			Handler: h,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
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

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// openSerial picks the line source: the device, a replayed fixture, or none.
func openSerial(cfg *config.TuningConfig) serialmux.SerialMuxInterface {
	switch {
	case *disableSerial:
		log.Print("serial disabled")
		return serialmux.NewDisabledSerialMux()
	case *devMode:
		data, err := os.ReadFile(*fixture)
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		log.Printf("replaying %s every %v", *fixture, *replayEvery)
		return serialmux.NewReplaySerialMux(data, *replayEvery)
	default:
		m, err := serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: cfg.GetBaudRate()})
		if err != nil {
			log.Fatalf("failed to open serial port %s: %v", *port, err)
		}
		return m
	}
}

func toRecord(sessionID string, res live.Result) *db.Reconstruction {
	return &db.Reconstruction{
		SessionID: sessionID,
		Seq:       res.Seq,
		Engine:    res.Engine,
		Success:   res.Success,
		Started:   res.Started,
		Duration:  res.Duration,
		Field:     res.Field,
	}
}
