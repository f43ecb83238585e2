package internal

import (
	"fmt"
	"os"
)

const Version = "0.3.1"

// PrintUsage writes the top-level help text to stderr.
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `mealqa - Retrieval-Augmented Meal QA Service

Version: %s

USAGE:
    mealqa [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.mealqa/config/mealqa.yaml)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    serve
        Run the HTTP API server

    index
        Chunk, embed and index document files

    remove
        Remove an indexed document

    ask
        Ask a single question from the command line

    search
        Keyword search over indexed chunks (debugging)

    init
        Write a default config file template

EXAMPLES:
    # Create the config file, then fill in llm.api_key
    mealqa init

    # Index every guide in a directory
    mealqa index "guides/**/*.txt"

    # Ask a question
    mealqa ask "grilled cheese sandwich and a soda"

    # Run the API
    mealqa serve

For detailed help on each command, use:
    mealqa <command> -help
`, Version)
}

// PrintConfigExample points the user at mealqa init when no config exists.
func PrintConfigExample() {
	homeDir, _ := os.UserHomeDir()
	fmt.Fprintf(os.Stderr, `No configuration found.

Run 'mealqa init' to create a template at %s/.mealqa/config/mealqa.yaml,
then set llm.api_key before indexing or asking questions.
`, homeDir)
}
