package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flitshare/flit/internal/fetch"
	"github.com/flitshare/flit/internal/logging"
	"github.com/flitshare/flit/internal/provide"
	"github.com/flitshare/flit/internal/transport"
)

const version = "v0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	if hasVersionFlag(args) {
		fmt.Printf("flit %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "provide":
		err = runProvide(ctx, args[1:])
	case "get":
		err = runGet(ctx, args[1:])
	default:
		if hasHelpFlag(args) {
			printUsage()
			return
		}
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runProvide(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("provide", flag.ExitOnError)
	addr := fs.String("addr", "0.0.0.0:0", "UDP address to listen on")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: flit provide <path> [flags]")
		fmt.Fprintln(os.Stderr, "share a file or directory and print the ticket for it")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("provide takes exactly one path, got %d", fs.NArg())
	}

	id, err := transport.LoadIdentity(os.Getenv, os.Stderr)
	if err != nil {
		return err
	}
	return provide.Run(ctx, provide.Options{
		Path:     fs.Arg(0),
		Addr:     *addr,
		StoreDir: ".flit-provide",
		Identity: id,
		Logger:   logging.New("flit", *logLevel),
		Stdout:   os.Stdout,
	})
}

func runGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	out := fs.String("out", ".", "directory to place the received data in")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn, error")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: flit get <ticket> [flags]")
		fmt.Fprintln(os.Stderr, "fetch the data a ticket refers to")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("get takes exactly one ticket, got %d", fs.NArg())
	}

	return fetch.Run(ctx, fetch.Options{
		Ticket: fs.Arg(0),
		OutDir: *out,
		Logger: logging.New("flit", *logLevel),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: flit <command> [args]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  provide  share a file or directory")
	fmt.Fprintln(os.Stderr, "  get      fetch data using a ticket")
	fmt.Fprintln(os.Stderr, "quick examples:")
	fmt.Fprintln(os.Stderr, "  flit provide ./photos")
	fmt.Fprintln(os.Stderr, "  flit get <ticket> --out ./downloads")
	fmt.Fprintln(os.Stderr, "to learn detailed usage:")
	fmt.Fprintln(os.Stderr, "  flit provide --help")
	fmt.Fprintln(os.Stderr, "  flit get --help")
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}
