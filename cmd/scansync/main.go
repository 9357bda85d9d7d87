package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"scansync/internal/config"
	"scansync/internal/imaging"
	"scansync/store"
	syncengine "scansync/store/sync"
)

var plainOutput bool

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// App bundles the pieces most commands need.
type App struct {
	Config *config.Config
	Store  *store.LocalStore
	Logger *slog.Logger
}

func newApp() (*App, error) {
	cfg := config.GetConfig()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	s, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		Config: cfg,
		Store:  s,
		Logger: logger,
	}, nil
}

func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

// Remote builds the remote store client from config.
func (a *App) Remote() (store.RemoteStore, error) {
	if a.Config.Remote.URL == "" {
		return nil, fmt.Errorf("no remote store configured, set remote.url in the config file")
	}
	return store.NewHTTPRemote(a.Config.Remote.URL, a.Config.Remote.Token, a.Config.Remote.Identity), nil
}

// Engine builds a sync engine wired with the image compressor and the
// configured timeouts and pacing.
func (a *App) Engine() (*syncengine.Engine, error) {
	remote, err := a.Remote()
	if err != nil {
		return nil, err
	}

	opts := syncengine.Options{
		LabelTimeout: a.Config.LabelTimeout(),
		OrderTimeout: a.Config.OrderTimeout(),
		ImageMaxKB:   a.Config.Sync.ImageMaxKB,
		Logger:       a.Logger,
	}
	if a.Config.Sync.PacingMillis > 0 {
		opts.Pacer = syncengine.FixedDelay(a.Config.PacingDelay())
	}

	return syncengine.New(a.Store, remote, imaging.New(), opts), nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "scansync",
		Short: "Offline-first label and order scanning store with cloud sync",
		Long: `scansync keeps scanned product labels and sales orders in a local
database and opportunistically synchronizes them with a shared cloud store.

All commands work offline; sync picks up whatever accumulated since the
last run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "plain output, no live progress UI")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			config.SetConfigPath(configPath)
		}
	}

	rootCmd.AddCommand(
		newScanCmd(),
		newLabelsCmd(),
		newOrdersCmd(),
		newSyncCmd(),
		newExportCmd(),
		newImportCmd(),
		newResetCmd(),
		newStatusCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
