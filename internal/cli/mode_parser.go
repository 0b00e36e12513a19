package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeGateway  = "gateway-service"
	ModeDispatch = "dispatch-service"
	ModeAdmin    = "admin-service"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeGateway, "gateway", "gw":
		return ModeGateway, true
	case ModeDispatch, "dispatch", "d":
		return ModeDispatch, true
	case ModeAdmin, "admin", "a":
		return ModeAdmin, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `gateway-service --max-concurrent=500`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
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
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./courier-dispatch --mode=<service> [flags]

Services (modes):
  gateway-service    WebSocket gateway for drivers, clients, and admins
  dispatch-service   Order lifecycle owner, intent consumer, and order API
  admin-service      Back-office API: login, notifications, overview

Examples:
  ./courier-dispatch --mode=gateway-service
  ./courier-dispatch --mode=dispatch-service --prefetch=10 --max-concurrent=200
  ./courier-dispatch --mode=admin-service --max-concurrent=50`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./courier-dispatch --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
