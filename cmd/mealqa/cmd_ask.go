package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sweetbite/mealqa/internal/config"
)

// handleAsk implements the ask subcommand
func handleAsk(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    mealqa ask "<question>"

DESCRIPTION:
    Ask a single question against the indexed documents. The answer is
    printed to stdout.

EXAMPLES:
    mealqa ask "white rice with fried chicken and a soda"
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	svc, cleanup, err := buildService(cfg, "", false)
	if err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	defer cleanup()

	answer, err := svc.ClassifyAndAnswer(context.Background(), fs.Arg(0), nil)
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}
	fmt.Println(answer.Text)
}
