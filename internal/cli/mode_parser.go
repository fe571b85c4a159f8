package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeAdmission = "admission-service"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeAdmission, "admission":
		return ModeAdmission, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `admission-service --port=3000`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "--mode=") {
			mode = strings.TrimPrefix(arg, "--mode=")
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, nil
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // switch the color to cyan

	fmt.Fprintln(w, `Usage:
  ./admission --mode=<service> [flags]

Services (modes):
  admission-service    HTTP API for admitting lunch orders

Examples:
  ./admission --mode=admission-service --port=3000 --max-concurrent=50
  ./admission admission-service --port=3001`)

	fmt.Fprint(w, "\033[0m") // switch back to normal
}

func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./admission --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
