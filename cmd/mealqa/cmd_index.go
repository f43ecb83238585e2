package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sweetbite/mealqa/cmd/mealqa/internal"
	"github.com/sweetbite/mealqa/internal/config"
	"github.com/sweetbite/mealqa/internal/store"
)

// handleIndexCmd implements the index subcommand
func handleIndexCmd(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	force := fs.Bool("force", false, "Reindex documents that already exist")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    mealqa index [options] <file|glob> [...]

DESCRIPTION:
    Chunk, embed and index document files. Each file becomes one document
    named after its base name. Globs support ** (doublestar).

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    mealqa index guide.txt
    mealqa index "guides/**/*.txt"
    mealqa index -force guide.txt
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	paths, err := expandPatterns(fs.Args())
	if err != nil {
		log.Fatalf("Failed to expand patterns: %v", err)
	}
	if len(paths) == 0 {
		log.Fatalf("No files matched")
	}

	svc, cleanup, err := buildService(cfg, "", true)
	if err != nil {
		log.Fatalf("Failed to start service: %v", err)
	}
	defer cleanup()

	ctx := context.Background()
	progress := internal.NewProgress()
	if progress != nil {
		progress.Start(len(paths))
	}

	indexed, failed := 0, 0
	for _, path := range paths {
		name := filepath.Base(path)

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Failed to read %s: %v", path, err)
			failed++
			continue
		}

		if *force {
			if err := svc.RemoveDocument(ctx, name); err != nil {
				log.Printf("Failed to remove existing document %s: %v", name, err)
			}
		}

		chunks, err := svc.IndexDocument(ctx, name, string(data))
		if err != nil {
			if errors.Is(err, store.ErrDocumentExists) {
				log.Printf("Skipping %s: already indexed (use -force to rebuild)", name)
			} else {
				log.Printf("Failed to index %s: %v", name, err)
				failed++
			}
		} else {
			log.Printf("Indexed %s (%d chunks)", name, chunks)
			indexed++
		}
		if progress != nil {
			progress.Increment()
		}
	}
	if progress != nil {
		progress.Finish()
	}

	fmt.Printf("Done: %d indexed, %d failed\n", indexed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// expandPatterns resolves plain paths and doublestar globs into a sorted,
// de-duplicated file list.
func expandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, pattern := range patterns {
		if info, err := os.Stat(pattern); err == nil && !info.IsDir() {
			if !seen[pattern] {
				seen[pattern] = true
				paths = append(paths, pattern)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[match] {
				seen[match] = true
				paths = append(paths, match)
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}
