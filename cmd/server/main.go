package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"livechat/pkg/database"
	"livechat/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	configPath := flag.String("config", "~/.livechat/config.toml", "Path to config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	dbPath := flag.String("db", "", "Path to SQLite database (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("LiveChat Server %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found)
	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command-line flags override config file
	if *addr != "" {
		config.Server.ListenAddr = *addr
	}
	if *dbPath != "" {
		config.Server.DatabasePath = *dbPath
	}

	if *debug {
		server.EnableDebugLogging()
		log.Printf("Debug logging enabled")
	}

	finalDBPath, err := config.GetDatabasePath()
	if err != nil {
		log.Fatalf("Failed to resolve database path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(finalDBPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	// There is no degraded mode without a store; an unreachable database
	// aborts startup.
	db, err := database.Open(finalDBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	seeds := make([]database.SeedRoom, 0, len(config.Rooms.SeedRooms))
	for _, room := range config.Rooms.SeedRooms {
		seeds = append(seeds, database.SeedRoom{Name: room.Name, Description: room.Description})
	}
	if err := db.SeedRooms(seeds); err != nil {
		log.Fatalf("Failed to seed rooms: %v", err)
	}

	srv := server.NewServer(db, config.ToServerConfig())
	srv.SetMetrics(server.NewMetrics())

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Printf("LiveChat server %s started successfully", Version)
	log.Printf("Database: %s", finalDBPath)
	log.Printf("WebSocket endpoint: ws://%s/ws", config.Server.ListenAddr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	if err := srv.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped")
}
