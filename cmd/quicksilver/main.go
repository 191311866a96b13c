// cmd/quicksilver/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"

	"quicksilver/cmd/quicksilver/commands"
	"quicksilver/internal/telemetry"
)

const version = "0.1.0"

// commandAliases mirrors the teacher's single-letter alias table.
var commandAliases = map[string]string{
	"s": "snapshot",
	"c": "cache",
	"p": "profiler",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	telemetryDSN, args := extractTelemetryFlag(args)
	var sink *telemetry.Sink
	if telemetryDSN != "" {
		dbType, dsn, ok := splitDSN(telemetryDSN)
		if !ok {
			log.Fatalf("Error: --telemetry expects <type>:<dsn>, e.g. sqlite:/tmp/quicksilver.db")
		}
		var err error
		sink, err = telemetry.Open(dbType, dsn)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		defer sink.Close()
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		showUsage()
		return
	}
	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		fmt.Printf("quicksilver %s\n", version)
		return
	}

	rest := args[1:]

	var err error
	switch cmd {
	case "snapshot":
		err = commands.SnapshotCommand(rest, commands.DefaultCompiler)
	case "run":
		err = commands.RunCommand(rest)
	case "cache":
		err = dispatchCache(rest, sink)
	case "profiler":
		err = dispatchProfiler(rest)
	default:
		showUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func dispatchCache(args []string, sink *telemetry.Sink) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: quicksilver cache <get|put|stats|clear|invalidate> ...")
	}
	switch args[0] {
	case "get":
		return commands.CacheGetCommand(args[1:], sink)
	case "put":
		return commands.CachePutCommand(args[1:])
	case "stats":
		return commands.CacheStatsCommand(args[1:])
	case "clear":
		return commands.CacheClearCommand(args[1:])
	case "invalidate":
		return commands.CacheInvalidateCommand(args[1:])
	default:
		return fmt.Errorf("unknown cache subcommand: %s", args[0])
	}
}

func dispatchProfiler(args []string) error {
	if len(args) == 0 || args[0] != "serve" {
		return fmt.Errorf("usage: quicksilver profiler serve [--addr :8089]")
	}
	return commands.ProfilerServeCommand(args[1:])
}

func extractTelemetryFlag(args []string) (string, []string) {
	for i, a := range args {
		if a == "--telemetry" && i+1 < len(args) {
			rest := append(append([]string{}, args[:i]...), args[i+2:]...)
			return args[i+1], rest
		}
	}
	return "", args
}

func splitDSN(telemetryDSN string) (dbType, dsn string, ok bool) {
	for i, r := range telemetryDSN {
		if r == ':' {
			return telemetryDSN[:i], telemetryDSN[i+1:], true
		}
	}
	return "", "", false
}

func showUsage() {
	bold := isatty.IsTerminal(os.Stdout.Fd())
	heading := "quicksilver"
	if bold {
		heading = "\x1b[1mquicksilver\x1b[0m"
	}
	fmt.Printf(`%s - bytecode engine tooling

Usage:
  quicksilver [--telemetry <type>:<dsn>] <command> [args]

Commands:
  snapshot <source-file> --output <file>   compile source and write a snapshot
  run <file.qss>                           load a snapshot and print its disassembly
  cache get <file>                         check the bytecode cache for a source file
  cache put <snapshot> <file>              seed the cache from a compiled snapshot
  cache stats [--human]                    show cache entry count and size
  cache clear                              remove every cache entry
  cache invalidate <file>                  remove one cache entry
  profiler serve [--addr :8089]            start a live profiler diagnostics server

Aliases: s=snapshot, c=cache, p=profiler
`, heading)
}
