package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sweetbite/mealqa/internal/config"
)

// handleRemove implements the remove subcommand
func handleRemove(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    mealqa remove <document> [...]

DESCRIPTION:
    Remove documents from the index. Removing a document that is not
    indexed is a no-op.
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	svc, cleanup, err := buildService(cfg, "", true)
	if err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	for _, name := range fs.Args() {
		if err := svc.RemoveDocument(ctx, name); err != nil {
			log.Fatalf("Failed to remove %s: %v", name, err)
		}
		log.Printf("Removed %s", name)
	}
}
