package main

import (
	"fmt"
	"os"

	"github.com/HerbHall/devicepulse/internal/version"
)

const usage = `usage: devicepulse [command] [flags]

commands:
  serve     run the HTTP server (default)
  config    print the effective configuration as YAML
  token     issue a signed API token
  version   print build information
`

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "config":
		runConfig(args)
	case "token":
		runToken(args)
	case "version":
		fmt.Println(version.Info())
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}
