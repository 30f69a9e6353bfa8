// recoilctl - recoil compensation and auto click service
// Holds a trigger key and pulls the mouse down while both buttons are held.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"recoilctl/internal/api"
	"recoilctl/internal/autostart"
	"recoilctl/internal/config"
	"recoilctl/internal/controller"
	"recoilctl/internal/input"
	"recoilctl/internal/logging"
	"recoilctl/internal/osutils"
	"recoilctl/internal/profile"
	"recoilctl/internal/tray"
)

var version = "0.1.0"

var (
	configDir string
	pluginDir string
	backend   string
	logLevel  string
	logJSON   bool
	apiAddr   string
	apiToken  string
	noTray    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "recoilctl",
		Short:         "Recoil compensation and auto click service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runService,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config-dir", "", "settings directory (default: per-user config dir)")
	flags.StringVar(&pluginDir, "plugins", "", "weapon profile directory (default: <config-dir>/plugins)")
	flags.StringVar(&backend, "backend", string(input.KindAuto), "input backend: auto|lowlevel|controller|none")
	flags.StringVar(&logLevel, "log-level", "info", "log level: trace|debug|info|warn|error")
	flags.BoolVar(&logJSON, "log-json", false, "write JSON log lines instead of console output")
	flags.StringVar(&apiAddr, "api-addr", api.DefaultAddr, "loopback address of the control API (empty disables it)")
	flags.StringVar(&apiToken, "api-token", os.Getenv("RECOILCTL_API_TOKEN"), "bearer token required by the control API")
	flags.BoolVar(&noTray, "no-tray", false, "run without the tray icon")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newProfilesCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newAutostartCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the service (default)",
		Args:  cobra.NoArgs,
		RunE:  runService,
	}
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "Print the loaded weapon profiles",
		Args:  cobra.NoArgs,
		RunE:  runProfiles,
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "recoilctl version %s\n", version)
		},
	}
}

func newAutostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting on login",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "autostart enabled: %v\n", autostart.IsEnabled())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Start the service on login with the current flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return autostart.Enable(serviceArgs(cmd)...)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Do not start on login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return autostart.Disable()
		},
	})
	return cmd
}

// serviceArgs rebuilds the run command line from the flags set explicitly.
func serviceArgs(cmd *cobra.Command) []string {
	args := []string{"run"}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == "api-token" {
			return
		}
		args = append(args, "--"+f.Name+"="+f.Value.String())
	})
	return args
}

func newLogger(sink *logging.Sink) (zerolog.Logger, error) {
	return logging.New(logging.Options{Level: logLevel, JSON: logJSON}, sink)
}

func runService(cmd *cobra.Command, _ []string) error {
	sink := logging.NewSink()
	log, err := newLogger(sink)
	if err != nil {
		return err
	}
	kind, err := input.ParseKind(backend)
	if err != nil {
		return err
	}

	if kind != input.KindNone {
		if ok, hint := osutils.CheckPrivileges(); !ok {
			log.Warn().Msg(hint)
		}
	}

	ctrl, err := controller.New(controller.Options{
		ConfigDir: configDir,
		PluginDir: pluginDir,
		Backend:   kind,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	ctrl.Start()

	var srv *api.Server
	if apiAddr != "" {
		srv = api.NewServer(ctrl, api.Options{
			Addr:   apiAddr,
			Token:  apiToken,
			Logger: logging.Component(log, "api"),
		})
		sink.Attach(srv.Hub())
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("control API stopped; continuing without it")
			}
		}()
	}

	shutdown := sync.OnceFunc(func() {
		sink.Attach(nil)
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				log.Warn().Err(err).Msg("control API shutdown")
			}
		}
		ctrl.Shutdown()
	})
	defer shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if noTray {
		log.Info().Msg("recoilctl running. Press Ctrl+C to stop.")
		<-ctx.Done()
		log.Info().Msg("signal received")
		return nil
	}

	var menu *tray.Menu
	menu = tray.NewMenu(ctrl, logging.Component(log, "tray"), func() { menu.Stop() })
	go func() {
		<-ctx.Done()
		menu.Stop()
	}()

	log.Info().Msg("recoilctl running. Quit from the tray or press Ctrl+C.")
	menu.Run()
	return nil
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(nil)
	if err != nil {
		return err
	}

	dir := pluginDir
	if dir == "" {
		settings, err := config.NewManager(configDir, log)
		if err != nil {
			return err
		}
		dir = filepath.Join(filepath.Dir(settings.Path()), "plugins")
	}
	loader, err := profile.NewLoader(dir, logging.Component(log, "profile"))
	if err != nil {
		return err
	}
	set, err := loader.Load()
	if errors.Is(err, profile.ErrNoProfiles) {
		fmt.Fprintf(cmd.OutOrStdout(), "no weapon profiles in %s; the built-in default is used\n", dir)
		return nil
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tDEFAULT PULL\tINITIAL (s)\tSTEADY PULL\tSLEEP (ms)\tACCEL")
	for i, wp := range set.All() {
		fmt.Fprintf(w, "%d\t%s\t%g\t%g\t%g\t%d\t%g\n",
			i, wp.Name, wp.DefaultPull, wp.InitialDuration, wp.SteadyPull, wp.SleepTime, wp.Acceleration)
	}
	return w.Flush()
}
