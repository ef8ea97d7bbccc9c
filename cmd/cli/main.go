package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/vk/annogrid/internal/cli"
)

// main is the entrypoint for the annogrid binary.
func main() {
	// Minimal logger until the app configures its own.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := cli.Execute(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var coded *cli.CodedError
		if errors.As(err, &coded) {
			os.Exit(coded.Code)
		}
		os.Exit(cli.ExitError)
	}
}
