package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sweetbite/mealqa/internal/config"
)

// handleSearch implements the search subcommand
func handleSearch(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	topK := fs.Int("k", 10, "Maximum number of results")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    mealqa search [options] "<keywords>"

DESCRIPTION:
    Keyword search over indexed chunks. This is a debugging aid for
    inspecting what the index contains; question answering uses vector
    similarity instead.

OPTIONS:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	svc, cleanup, err := buildService(cfg, "", true)
	if err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	defer cleanup()

	hits, err := svc.SearchChunks(fs.Arg(0), *topK)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	if len(hits) == 0 {
		fmt.Println("No matches.")
		return
	}

	for i, hit := range hits {
		fmt.Printf("%2d. [%.3f] %s: %s\n", i+1, hit.Score, hit.DocID, hit.Title)
	}
}
