package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/herdsman"
	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	profileFlags := &ProfileFlags{}
	openAllFlags := &OpenAllFlags{}
	aliasFlags := &AliasFlags{}

	cm := command{global: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createScanCommand(cm),
		createStatusCommand(cm, profileFlags),
		createOpenCommand(cm, profileFlags),
		createOpenAllCommand(cm, openAllFlags),
		createKillCommand(cm, profileFlags),
		createKillAllCommand(cm, profileFlags),
		createRestartCommand(cm, profileFlags),
		createAliasCommand(cm, aliasFlags),
		createIdentifyCommand(cm, profileFlags),
		createServeCommand(globalFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "herdsman",
		Short: "Supervisor for multi-instance desktop app profiles",
		Long: `Herdsman discovers per-profile folders under a base directory, tracks
which instances are running, and opens, kills or restarts them locally
or through a remote daemon connection.

Examples:
  herdsman status --base-dir="D:\Telegram Instances"
  herdsman open --key="/data/instances/instance 2"
  herdsman serve --config config.toml  # Start daemon
  herdsman status --api-url=http://remote:8811  # Remote status`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.BaseDir, "base-dir", "", "profile base directory (overrides config)")
	return root
}

func addRemoteFlags(cmd *cobra.Command, apiURL *string, apiTimeout *time.Duration) {
	cmd.Flags().StringVar(apiURL, "api-url", "", "remote daemon URL (e.g. http://host:8811)")
	cmd.Flags().DurationVar(apiTimeout, "api-timeout", 30*time.Second, "request timeout")
}

func createScanCommand(cm command) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Discover profile folders once and list them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cm.Scan()
		},
	}
}

func createStatusCommand(cm command, flags *ProfileFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List profiles and their state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cm.Status(*flags)
		},
	}
	addRemoteFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func createOpenCommand(cm command, flags *ProfileFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Launch one profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cm.Open(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Key, "key", "", "profile key (normalized folder path)")
	addRemoteFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func createOpenAllCommand(cm command, flags *OpenAllFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open-all",
		Short: "Launch every profile with bounded parallelism",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cm.OpenAll(*flags)
		},
	}
	cmd.Flags().IntVar(&flags.MaxParallel, "max-parallel", 0, "launch parallelism bound (0 = configured default)")
	addRemoteFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func createKillCommand(cm command, flags *ProfileFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Stop one profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cm.Kill(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Key, "key", "", "profile key (normalized folder path)")
	cmd.Flags().BoolVar(&flags.Force, "force", false, "skip the graceful phase")
	addRemoteFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func createKillAllCommand(cm command, flags *ProfileFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kill-all",
		Short: "Stop every running profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cm.KillAll(*flags)
		},
	}
	addRemoteFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func createRestartCommand(cm command, flags *ProfileFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart one profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cm.Restart(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Key, "key", "", "profile key (normalized folder path)")
	addRemoteFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func createAliasCommand(cm command, flags *AliasFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Set or clear a profile display name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cm.Alias(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Key, "key", "", "profile key (normalized folder path)")
	cmd.Flags().StringVar(&flags.Name, "name", "", "display name (empty clears)")
	addRemoteFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func createIdentifyCommand(cm command, flags *ProfileFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Suggest an alias from the running profile's window titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cm.Identify(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Key, "key", "", "profile key (normalized folder path)")
	addRemoteFlags(cmd, &flags.APIUrl, &flags.APITimeout)
	return cmd
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the herdsman daemon",
		Long: `Start the herdsman daemon: background scanning, the HTTP API and,
when configured, the Prometheus metrics endpoint.

Examples:
  herdsman serve --config config.toml
  herdsman serve config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := globalFlags.ConfigPath
			if len(args) > 0 {
				path = args[0]
			}
			return runServe(path, globalFlags.BaseDir)
		},
	}
	return cmd
}

func runServe(configPath, baseDir string) error {
	var conf *herdsman.Config
	if configPath != "" {
		loaded, err := herdsman.LoadConfig(configPath)
		if err != nil {
			return err
		}
		conf = loaded
	} else {
		conf = herdsman.DefaultConfig()
	}
	if baseDir != "" {
		conf.BaseDir = baseDir
	}
	if conf.BaseDir == "" {
		return fmt.Errorf("base directory required: pass --base-dir or set base_dir in the config file")
	}
	conf.Normalize()

	log := herdsman.NewLogger(conf)
	sup, err := herdsman.New(conf, log)
	if err != nil {
		return err
	}
	defer func() { _ = sup.Close() }()

	if n, err := sup.Rescan(); err != nil {
		log.Warn("initial discovery failed, starting with empty catalog", "error", err)
	} else {
		log.Info("catalog discovered", "profiles", n)
	}
	sup.Start()

	srv, err := herdsman.NewHTTPServer(conf.Server.Addr, conf.Server.BasePath, sup)
	if err != nil {
		return err
	}
	log.Info("http api listening", "addr", conf.Server.Addr)

	if conf.Server.MetricsAddr != "" {
		if err := herdsman.RegisterMetricsDefault(); err != nil {
			log.Warn("metrics registration failed", "error", err)
		}
		go func() {
			if err := herdsman.ServeMetrics(conf.Server.MetricsAddr); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())
	_ = srv.Close()
	return nil
}
