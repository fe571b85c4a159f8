package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crowdlunch/admission/cmd/admissionservice"
	"github.com/crowdlunch/admission/internal/cli"
)

func main() {
	// check for help flag first
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse all command-line arguments
	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// ensure that mode is not empty
	if mode == "" {
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// create context cancelled on SIGINT/SIGTERM signals ensuring graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// run the service specified by the mode flag
	switch mode {
	case cli.ModeAdmission:
		fs := flag.NewFlagSet(cli.ModeAdmission, flag.ContinueOnError)
		port := fs.Int("port", 3000, "HTTP port for the API")
		maxConc := fs.Int("max-concurrent", 50, "Maximum number of concurrent requests to process")
		cli.AttachUsage(fs, cli.ModeAdmission)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}

		if *port <= 0 || *port > 65535 {
			fmt.Fprintln(os.Stderr, "Error: --port must be between 1 and 65535")
			fs.Usage()
			os.Exit(2)
		}
		if *maxConc <= 0 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be > 0")
			fs.Usage()
			os.Exit(2)
		}

		if err := admissionservice.Run(ctx, *port, *maxConc); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}
}
