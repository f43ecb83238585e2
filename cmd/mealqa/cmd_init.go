package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sweetbite/mealqa/internal/config"
)

// handleInit implements the init subcommand
func handleInit(configPath string, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    mealqa init

DESCRIPTION:
    Write a default config file template if none exists. Use the global
    -config flag to choose a non-default location.
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			log.Fatalf("Failed to determine config path: %v", err)
		}
	}

	created, err := config.WriteDefaultTemplate(path)
	if err != nil {
		log.Fatalf("Failed to write config template: %v", err)
	}
	if created {
		fmt.Printf("Created config template at %s\n", path)
		fmt.Println("Set llm.api_key before running 'mealqa index' or 'mealqa ask'.")
	} else {
		fmt.Printf("Config already exists at %s\n", path)
	}
}
