// Command tracksided is the trackside peripheral daemon. It listens for
// one host connection, executes turnout, signal head and sensor commands
// against the local hardware drivers and reports sensor changes back.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/modelrail/go-trackside/device"
	"github.com/modelrail/go-trackside/link"
	"github.com/modelrail/go-trackside/logger"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "dev"
}

func main() {
	cfg := DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "tracksided",
		Short:   "Trackside peripheral daemon driving turnouts, signal heads and sensors",
		Version: getVersion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = defaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && fileExists(cfgFile) {
				fc, err := loadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := applyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			return run(cfg, cfgFile, changed)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: ~/.trackside/tracksided.toml)")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	root.Flags().DurationVar(&cfg.ConnTimeout, "conn-timeout", cfg.ConnTimeout, "socket read timeout and reconnect delay")
	root.Flags().IntVar(&cfg.MaxHeartbeatFail, "max-heartbeat-fail", cfg.MaxHeartbeatFail, "consecutive read timeouts before the link is declared dead")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&cfg.SimHardware, "sim-hardware", cfg.SimHardware, "drive simulated hardware instead of GPIO/I2C")

	if err := root.Execute(); err != nil {
		logger.Error("tracksided failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, cfgFile string, changed map[string]bool) error {
	logger.SetLevel(parseLogLevel(cfg.LogLevel))
	log := logger.GetLogger()

	if !cfg.SimHardware {
		// real GPIO and I2C drivers are provided by the deployment build
		return fmt.Errorf("hardware drivers not available in this build, run with --sim-hardware")
	}

	servoFactory, boardFactory, inputFactory := device.SimFactories(log)

	turnouts := device.NewTurnout(servoFactory, log)
	heads := device.NewSignalHead(boardFactory, log)
	sensors := device.NewSensorBank(inputFactory, log)
	dispatcher := device.NewDispatcher(turnouts, heads, sensors, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	linkCfg, err := link.NewConfig("", cfg.Port,
		link.WithPassive(),
		link.WithConnTimeout(cfg.ConnTimeout),
		link.WithMaxHeartbeatFail(cfg.MaxHeartbeatFail),
		link.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("link config: %w", err)
	}

	mgr, err := link.NewManager(ctx, linkCfg, dispatcher.HandleFrame)
	if err != nil {
		return fmt.Errorf("link manager: %w", err)
	}

	if err := mgr.Open(false); err != nil {
		return fmt.Errorf("open link: %w", err)
	}

	log.Info("tracksided started", "port", cfg.Port, "sim_hardware", cfg.SimHardware)

	// re-apply log_level when the config file changes on disk
	stopWatch := watchConfig(ctx, cfgFile, changed, log)
	defer stopWatch()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("received signal, stopping")

	mgr.Stop()
	heads.Stop()
	sensors.Close()

	return nil
}
