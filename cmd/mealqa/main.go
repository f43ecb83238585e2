package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sweetbite/mealqa/cmd/mealqa/internal"
	"github.com/sweetbite/mealqa/internal/config"
	"github.com/sweetbite/mealqa/internal/llm"
	"github.com/sweetbite/mealqa/internal/service"
	"github.com/sweetbite/mealqa/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		internal.PrintUsage()
		os.Exit(1)
	}

	configPath := ""
	args := os.Args[1:]

	for _, arg := range args {
		if arg == "-h" || arg == "-help" || arg == "--help" {
			internal.PrintUsage()
			os.Exit(0)
		}
		if arg == "-v" || arg == "-version" || arg == "--version" {
			fmt.Printf("mealqa version %s\n", internal.Version)
			os.Exit(0)
		}
	}

	validSubcommands := map[string]bool{
		"serve":  true,
		"index":  true,
		"remove": true,
		"ask":    true,
		"search": true,
		"init":   true,
	}

	subcommandIndex := -1
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && validSubcommands[arg] {
			subcommandIndex = i
			break
		}
	}

	if subcommandIndex == -1 {
		fmt.Fprintf(os.Stderr, "Error: No subcommand specified\n\n")
		internal.PrintUsage()
		os.Exit(1)
	}

	globalFlags := args[:subcommandIndex]
	for i := 0; i < len(globalFlags); i++ {
		flag := globalFlags[i]
		switch {
		case flag == "-config" || flag == "--config":
			if i+1 < len(globalFlags) {
				configPath = globalFlags[i+1]
				i++
			}
		case strings.HasPrefix(flag, "-"):
			fmt.Fprintf(os.Stderr, "Error: Unknown global flag: %s\n\n", flag)
			internal.PrintUsage()
			os.Exit(1)
		}
	}

	subcommand := args[subcommandIndex]
	subcommandArgs := args[subcommandIndex+1:]

	// init must work before any config exists.
	if subcommand == "init" {
		handleInit(configPath, subcommandArgs)
		return
	}

	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		if config.IsConfigNotFound(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			internal.PrintConfigExample()
			os.Exit(1)
		}
		log.Fatalf("Failed to load config: %v", err)
	}

	logPath := ""
	if subcommand != "ask" && subcommand != "search" {
		if logPath, err = internal.SetupLogging(subcommand, cfg.Data.Dir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize log file: %v\n", err)
		}
	}

	switch subcommand {
	case "serve":
		handleServe(cfg, configPath, logPath, subcommandArgs)
	case "index":
		handleIndexCmd(cfg, subcommandArgs)
	case "remove":
		handleRemove(cfg, subcommandArgs)
	case "ask":
		handleAsk(cfg, subcommandArgs)
	case "search":
		handleSearch(cfg, subcommandArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", subcommand)
		internal.PrintUsage()
		os.Exit(1)
	}
}

// buildService opens the on-disk stores and wires the pipeline. The
// returned cleanup closes them.
func buildService(cfg *config.Config, configPath string, withKeywordIndex bool) (*service.Service, func(), error) {
	st, err := store.Open(filepath.Join(cfg.Data.Dir, "index.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open vector store: %w", err)
	}

	var textIndex *store.TextIndex
	if withKeywordIndex {
		textIndex, err = store.OpenTextIndex(filepath.Join(cfg.Data.Dir, "chunks.bleve"))
		if err != nil {
			st.Close()
			return nil, nil, err
		}
	}

	gateway, err := llm.NewOpenAIClient(&cfg.LLM)
	if err != nil {
		if textIndex != nil {
			textIndex.Close()
		}
		st.Close()
		return nil, nil, err
	}

	if configPath == "" {
		configPath, _ = config.DefaultPath()
	}
	svc := service.New(config.NewManager(cfg, configPath), st, textIndex, gateway)

	cleanup := func() {
		if textIndex != nil {
			textIndex.Close()
		}
		st.Close()
	}
	return svc, cleanup, nil
}
