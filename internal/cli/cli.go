package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/abca4/fafpipe/internal/app"
)

// ExitError carries a specific process exit code alongside the message.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a validated
// app.Config, a boolean indicating the program should exit cleanly
// (help requested or no input given), or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("fafpipe", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
fafpipe - quantitative autofluorescence analysis pipeline.

Usage:
  fafpipe [options] [INPUT_PATH]

Arguments:
  INPUT_PATH
    Path to the FAF image to analyze.

Options:
`)
		flagSet.PrintDefaults()
	}

	inputFlag := flagSet.String("input", "", "Path to the FAF image to analyze.")
	iFlag := flagSet.String("i", "", "Path to the FAF image to analyze (shorthand).")
	configFlag := flagSet.String("config", "", "Path to an HCL config file with settings and job overrides.")
	startFromFlag := flagSet.String("start-from", "", "Run only this job and its downstream jobs.")
	stopAfterFlag := flagSet.String("stop-after", "", "Run only this job and its upstream jobs.")
	skipExistingFlag := flagSet.Bool("skip-existing", false, "Skip jobs whose results already exist for this input.")
	xFlag := flagSet.Bool("x", false, "Skip jobs whose results already exist (shorthand).")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers. 0 uses the config file or the default.")
	workDirFlag := flagSet.String("work-dir", "", "Directory for per-job workfiles. Defaults next to the input.")
	dbFlag := flagSet.String("db", "", "SQLite database for results and run reports. Empty keeps results in memory.")
	logLevelFlag := flagSet.String("log-level", "", "Logging level: 'debug', 'info', 'warn', or 'error'.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format: 'text' or 'json'.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health/metrics server. 0 is disabled.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	switch {
	case *inputFlag != "":
		path = *inputFlag
	case *iFlag != "":
		path = *iFlag
	case flagSet.NArg() > 0:
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	switch logFormat {
	case "", "text", "json":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg, err := app.NewConfig(app.Config{
		InputPath:       path,
		ConfigPath:      *configFlag,
		StartFrom:       *startFromFlag,
		StopAfter:       *stopAfterFlag,
		SkipExisting:    *skipExistingFlag || *xFlag,
		Workers:         *workersFlag,
		WorkDir:         *workDirFlag,
		Database:        *dbFlag,
		LogLevel:        logLevel,
		LogFormat:       logFormat,
		HealthcheckPort: *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, false, nil
}
