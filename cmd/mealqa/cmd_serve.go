package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sweetbite/mealqa/internal/config"
	"github.com/sweetbite/mealqa/internal/server"
)

// handleServe implements the serve subcommand
func handleServe(cfg *config.Config, configPath, logPath string, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides http.addr)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    mealqa serve [options]

DESCRIPTION:
    Run the HTTP API server: document upload/delete, question answering,
    config editing and keyword chunk lookup.

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	svc, cleanup, err := buildService(cfg, configPath, true)
	if err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	defer cleanup()

	listenAddr := cfg.HTTP.Addr
	if *addr != "" {
		listenAddr = *addr
	}

	handler := server.New(svc, filepath.Join(cfg.Data.Dir, "files"), logPath)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Listening on %s", listenAddr)
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
