package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/peaklink/internal/logging"
)

const usage = `usage: peakctl <command> [flags]

commands:
  decode <hex>...   decode wire messages (reads stdin when no hex is given)
  raw <hex>...      decode 12-byte sensor-native peak records
  config            send the filter config and wait for the status ack
  start             start acquisition
  stop              stop acquisition
  listen            print (and optionally record) messages from the instrument
  runs              list recorded runs
  init              write a starter config file
  show-config       print the effective config
`

var errUsage = errors.New("usage")

func main() {
	logging.ConfigureRuntime("peakctl")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "decode":
		return runDecode(rest, stdin, stdout)
	case "raw":
		return runRaw(rest, stdin, stdout)
	case "config", "start", "stop":
		return runCommand(ctx, cmd, rest, stdout)
	case "listen":
		return runListen(ctx, rest, stdout)
	case "runs":
		return runRuns(ctx, rest, stdout)
	case "init":
		return runInit(rest, stdout)
	case "show-config":
		return runShowConfig(rest, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("peakctl "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "peakctl: "+format+"\n", args...)
	os.Exit(1)
}
