// Command rspeed-client repeatedly measures download and upload throughput
// against a cycle1 server until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/rspeed/internal/persistence"
	"github.com/m-lab/rspeed/pkg/client"
	"github.com/m-lab/rspeed/pkg/cycle1/spec"
	"github.com/m-lab/rspeed/pkg/version"
)

const clientName = "rspeed-client"

var (
	flagServer   = flag.String("server", "", "Server base URL or host:port. Uses the Locate API if empty")
	flagScheme   = flag.String("scheme", client.DefaultScheme, "Scheme for bare host:port servers and Locate lookups (http or https)")
	flagTestID   = flag.String("testid", "", "Test ID to request. The server assigns one if empty")
	flagInterval = flag.Duration("interval", spec.DefaultInterval*time.Second, "Time between the start of two cycles")
	flagDownload = flag.Int64("download", spec.DefaultDownloadLength, "Initial download length in bytes")
	flagUpload   = flag.Int64("upload", spec.DefaultUploadLength, "Initial upload length in bytes")
	flagTimeout  = flag.Duration("timeout", client.DefaultTimeout, "Timeout for a single exchange")
	flagConfig   = flag.String("config", "", "Optional .properties file. Command line flags take precedence")
	flagDataDir  = flag.String("datadir", "", "Directory to archive results in. Disabled if empty")
	flagSkip     = flag.Bool("skip-failed-cycles", false, "Log and skip failed cycles instead of exiting")
	flagDebug    = flag.Bool("debug", false, "Enable debug output")
	flagNoVerify = flag.Bool("no-verify", false, "Skip TLS certificate verification")
)

// applyFlags copies the flags that were set explicitly on the command line
// into config.
func applyFlags(config *client.Config, set map[string]bool) {
	if set["server"] {
		config.Server = *flagServer
	}
	if set["scheme"] || config.Scheme == "" {
		config.Scheme = *flagScheme
	}
	if set["testid"] {
		config.TestID = *flagTestID
	}
	if set["interval"] || config.Interval == 0 {
		config.Interval = *flagInterval
	}
	if set["download"] || config.DownloadLength == 0 {
		config.DownloadLength = *flagDownload
	}
	if set["upload"] || config.UploadLength == 0 {
		config.UploadLength = *flagUpload
	}
	if set["timeout"] || config.Timeout == 0 {
		config.Timeout = *flagTimeout
	}
	if set["skip-failed-cycles"] {
		config.SkipFailedCycles = *flagSkip
	}
	if set["no-verify"] {
		config.NoVerify = *flagNoVerify
	}
}

// datatype names the archived results.
const datatype = "cycle1"

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "could not get args from environment variables")

	log.SetReportTimestamp(true)
	if *flagDebug {
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	config := client.Config{}
	if *flagConfig != "" {
		rtx.Must(client.LoadConfig(*flagConfig, &config), "failed to load %s", *flagConfig)
	}
	applyFlags(&config, set)
	if config.Server == "" && flag.NArg() > 0 {
		config.Server = flag.Arg(0)
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run measures until interrupted. It returns the error that stopped the
// measurements, if any.
func run(config client.Config) error {
	streams := &client.Streams{Log: os.Stdout, Report: os.Stderr, Debug: *flagDebug}
	emitters := client.Emitters{streams}
	if *flagDataDir != "" {
		df, err := persistence.New(*flagDataDir, datatype, uuid.NewString())
		if err != nil {
			return fmt.Errorf("failed to create archive in %s: %w", *flagDataDir, err)
		}
		defer df.Close()
		log.Info("archiving results", "path", df.Path)
		emitters = append(emitters, &client.Archiver{Writer: df})
	}
	config.Emitter = emitters

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(clientName, version.Version, config)
	err := c.Run(ctx)
	switch {
	case client.IsFatal(err):
		log.Error("could not start the session", "server", c.Session().Server, "err", err)
	case err != nil:
		log.Error("measurement failed", "server", c.Session().Server,
			"testID", c.Session().TestID, "err", err)
	default:
		log.Info("stopped", "testID", c.Session().TestID, "cycles", c.Session().TestNumber)
	}
	return err
}
