package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/HerbHall/devicepulse/internal/config"
)

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	showSecrets := fs.Bool("show-secrets", false, "print secrets instead of redacting them")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if err := writeConfig(os.Stdout, *configPath, *showSecrets); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
}

// writeConfig prints the effective settings loaded from path as YAML.
func writeConfig(w io.Writer, path string, showSecrets bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	settings := cfg.Settings()
	if !showSecrets {
		settings = settings.Redacted()
	}
	out, err := settings.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
