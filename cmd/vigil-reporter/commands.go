package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MightyToolkit/vigil-reporter/internal/config"
	"github.com/MightyToolkit/vigil-reporter/internal/logging"
	"github.com/MightyToolkit/vigil-reporter/internal/metrics"
	"github.com/MightyToolkit/vigil-reporter/internal/reporter"
)

const (
	defaultConfigPath = "/etc/vigil-reporter/config.toml"
	notConfigured     = "(not configured)"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "vigil-reporter",
		Short:        "Report host CPU and memory load to a Vigil server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "config file (.toml, .yaml or .json)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "env file with VIGIL_* overrides (default .env)")

	root.AddCommand(
		newRunCmd(opts),
		newSendCmd(opts),
		newPrintPayloadCmd(opts),
		newInitCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Report periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			closer := logging.Setup(cfg.Log)
			defer closer.Close()

			r, err := reporter.New(cfg)
			if err != nil {
				return err
			}
			return runUntilSignal(cmd.Context(), r)
		},
	}
}

func runUntilSignal(ctx context.Context, r *reporter.Reporter) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.Start(); err != nil {
		return err
	}

	select {
	case <-r.Done():
		return r.Err()
	case <-ctx.Done():
	}

	log.Info("Received shutdown signal, stopping reporter")
	r.Stop()

	// the loop ends after the cycle in flight; a pending tick is not waited for
	waitCtx, cancel := context.WithTimeout(context.Background(), r.Config().Timeout.Std()+time.Second)
	defer cancel()
	if err := r.Wait(waitCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send a single report and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			closer := logging.Setup(cfg.Log)
			defer closer.Close()

			r, err := reporter.New(cfg)
			if err != nil {
				return err
			}
			ok, err := r.SendSingleReport(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("report to %s was not accepted", r.EndpointURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report accepted by %s\n", r.EndpointURL())
			return nil
		},
	}
}

func newPrintPayloadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "print-payload",
		Short: "Print the payload that would be sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			payload, err := buildPayload(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(payload)
		},
	}
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	cfg := &config.Config{}
	var interval string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := config.ParseDuration(interval)
			if err != nil {
				return &config.Error{Field: "interval", Reason: err.Error()}
			}
			cfg.Interval = parsed
			if cfg.ReplicaID == "" {
				cfg.ReplicaID = metrics.GetHostname(cmd.Context())
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := config.Save(opts.configPath, cfg); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", opts.configPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.URL, "url", "", "Vigil base URL, e.g. https://status.example.com")
	cmd.Flags().StringVar(&cfg.Token, "token", "", "Vigil reporter token")
	cmd.Flags().StringVar(&cfg.ProbeID, "probe", "", "probe ID")
	cmd.Flags().StringVar(&cfg.NodeID, "node", "", "node ID")
	cmd.Flags().StringVar(&cfg.ReplicaID, "replica", "", "replica ID (default hostname)")
	cmd.Flags().StringVar(&interval, "interval", "30s", "report interval")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// loadConfig reads the config file and applies VIGIL_* overrides. A missing
// file is fine when the environment carries the whole configuration.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	config.LoadEnvFile(log.StandardLogger(), opts.envFile)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.Debugf("Config file %s not found, using environment only", opts.configPath)
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildPayload(ctx context.Context, cfg *config.Config) (*metrics.ReportPayload, error) {
	sample, err := metrics.SampleLoad(ctx)
	if err != nil {
		return nil, err
	}

	if r, err := reporter.New(cfg); err == nil {
		return r.BuildPayload(sample), nil
	}

	replica := cfg.ReplicaID
	if replica == "" {
		replica = notConfigured
	}
	return &metrics.ReportPayload{
		Replica:  replica,
		Interval: cfg.Interval.Seconds(),
		Load:     metrics.Load{CPU: sample.CPU, RAM: sample.Mem},
	}, nil
}
