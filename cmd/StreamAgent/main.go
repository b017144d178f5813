// Command StreamAgent runs autonomous streaming characters against the
// streaming platform API.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BTreeMap/StreamAgent/internal/config"
	"github.com/spf13/cobra"
)

// Flags holds command line flag values. Every default comes from the environment.
type Flags struct {
	verbose bool

	streamURL string
	streamKey string

	provider    string
	openaiKey   string
	geminiKey   string
	smallModel  string
	mediumModel string
	genaiDebug  bool

	playhtKey    string
	playhtUserID string
	playhtVoice  string

	stateDir string
	dbDSN    string
	dbDriver string
	apiAddr  string

	settingsPath  string
	characters    []string
	commentLimit  int
	heartbeatCron string
	maxSteps      int
	maxRestarts   int
	publish       bool
}

func main() {
	env := config.LoadEnv()
	if err := newRootCmd(env).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI with flags defaulting to env.
func newRootCmd(env config.Env) *cobra.Command {
	flags := &Flags{}
	root := &cobra.Command{
		Use:           "StreamAgent",
		Short:         "Autonomous AI streamers driven by a task cycle orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initializeLogger(flags.verbose)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging (overrides $LOG_LEVEL)")
	pf.StringVar(&flags.stateDir, "state-dir", env.StateDir, "state directory for StreamAgent data (overrides $STREAMAGENT_STATE_DIR)")
	pf.StringVar(&flags.dbDSN, "db-dsn", env.DBDSN, "SQLite path or Postgres DSN for memories and cycles (overrides $DATABASE_DSN)")
	pf.StringVar(&flags.dbDriver, "db-driver", env.DBDriver, "SQLite driver: sqlite3 (cgo) or sqlite (pure Go) (overrides $DB_DRIVER)")
	pf.StringSliceVar(&flags.characters, "characters", env.Characters, "character files, one agent each (overrides $CHARACTERS)")

	root.AddCommand(newRunCmd(env, flags), newHistoryCmd(flags))
	return root
}

// initializeLogger sets up structured logging. --verbose wins over LOG_LEVEL.
func initializeLogger(verbose bool) {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
