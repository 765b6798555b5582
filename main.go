package main

import (
	"bufio"
	"context"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shelf-data/shelfview/internal/api"
	"github.com/shelf-data/shelfview/internal/config"
	"github.com/shelf-data/shelfview/internal/db"
	"github.com/shelf-data/shelfview/internal/serialmux"
	"github.com/shelf-data/shelfview/internal/shelf"
	"github.com/shelf-data/shelfview/internal/version"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode       = flag.Bool("dev", false, "Run in dev mode: replay fixture lines instead of opening a serial port")
	disableSerial = flag.Bool("disable-serial", false, "Start with the serial link disabled")
	listen        = flag.String("listen", ":8080", "Listen address")
	configPath    = flag.String("config", config.DefaultConfigPath, "Path to the shelf configuration file")
	portPath      = flag.String("port", "", "Serial port path (overrides the config file)")
	dbFile        = flag.String("db", "shelfview.db", "Path to the settings database")
	migrationsDir = flag.String("migrations", "migrations", "Path to the settings database migrations")
	fixturesPath  = flag.String("fixtures", "fixtures.txt", "Fixture lines replayed in dev mode")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

// loadFixtureLines reads the dev-mode replay file, one protocol line per row.
func loadFixtureLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("shelfview %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	opts, err := cfg.PortOptions()
	if err != nil {
		log.Fatalf("invalid serial options: %v", err)
	}
	path := cfg.Serial.PortPath
	if *portPath != "" {
		path = *portPath
	}

	registry, err := shelf.NewRegistry(cfg.ShelfConfig())
	if err != nil {
		log.Fatalf("failed to build shelf registry: %v", err)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open settings database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate settings database: %v", err)
	}

	var initial serialmux.SerialMuxInterface
	switch {
	case *disableSerial:
		initial = serialmux.NewDisabledSerialMux()
	case *devMode:
		lines, err := loadFixtureLines(*fixturesPath)
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		initial = serialmux.NewMockSerialMux(lines, 500*time.Millisecond)
	default:
		m, err := serialmux.NewRealSerialMux(path, opts)
		if err != nil {
			// The console still comes up with the link closed; a reload can
			// open it once the device is plugged in.
			log.Printf("serial link unavailable at startup: %v", err)
		} else {
			initial = m
		}
	}

	snapshot := api.SerialConfigSnapshot{
		PortPath: path,
		Source:   "file",
		Options:  opts,
	}
	factory := func(p string, o serialmux.PortOptions) (serialmux.SerialMuxInterface, error) {
		return serialmux.NewRealSerialMux(p, o)
	}
	manager := api.NewSerialPortManager(database, initial, snapshot, factory)
	defer manager.Close()

	server := api.NewServer(manager, registry, database)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial link
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := manager.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// decode received lines and route them to rails
	wg.Add(1)
	go func() {
		defer wg.Done()
		server.RunDispatcher(ctx)
		log.Print("dispatcher routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		database.AttachAdminRoutes(mux)
		manager.AttachAdminRoutes(mux)

		mux.Handle("/api/", server.ServeMux())

		// read static files from the embedded filesystem in production or from
		// the local ./static in dev for easier iteration without restarting
		// the server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticRoot, err := fs.Sub(staticFiles, "static")
			if err != nil {
				log.Fatalf("failed to open embedded static files: %v", err)
			}
			staticHandler = http.FileServer(http.FS(staticRoot))
		}
		mux.Handle("/", staticHandler)

		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
