package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sarchlab/forksim/config"
)

// app holds the state shared by all subcommands.
type app struct {
	v      *viper.Viper
	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "forksim",
		Short: "Speculative fork control core simulator",
		Long: `forksim simulates the control core of a speculative multi-core unit:
the fork controller with its history predictor, the memory conflict
tracker, the validator and the context manager, advanced in lockstep.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.bindChanged(cmd)
			logger, err := newLogger(a.v.GetString("log_level"))
			if err != nil {
				return err
			}
			logger.SetOutput(cmd.ErrOrStderr())
			a.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (JSON or YAML)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Int("cores", 0, "number of cores, master included")
	flags.Int("split-factor", 0, "workers per conservative split")
	flags.Int("readset-depth", 0, "read-set entries per worker")
	flags.Int("registers", 0, "registers moved per context copy")

	a.setDefaults(root)

	root.AddCommand(
		newRunCmd(a),
		newBuiltinCmd(a),
		newELFCmd(a),
		newConfigCmd(a),
	)

	return root
}

// setDefaults layers defaults and environment variables in viper.
func (a *app) setDefaults(root *cobra.Command) {
	d := config.DefaultConfig()
	a.v.SetDefault("num_cores", d.NumCores)
	a.v.SetDefault("split_factor", d.SplitFactor)
	a.v.SetDefault("predictor_entries", d.PredictorEntries)
	a.v.SetDefault("predictor_init", d.PredictorInit)
	a.v.SetDefault("readset_depth", d.ReadSetDepth)
	a.v.SetDefault("num_registers", d.NumRegisters)
	a.v.SetDefault("freq", float64(d.Freq))

	a.v.SetEnvPrefix("FORKSIM")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	_ = a.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))
}

// coreFlags maps the numeric override flags to config keys.
var coreFlags = map[string]string{
	"cores":         "num_cores",
	"split-factor":  "split_factor",
	"readset-depth": "readset_depth",
	"registers":     "num_registers",
}

// bindChanged binds the numeric override flags that were set on the
// command line. Unset flags stay unbound so that their zero value never
// overrides the config file.
func (a *app) bindChanged(cmd *cobra.Command) {
	for flag, key := range coreFlags {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			_ = a.v.BindPFlag(key, f)
		}
	}
}

// loadConfig resolves the configuration from defaults, the config file,
// FORKSIM_* environment variables and flags, in increasing priority.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := config.DefaultConfig()
	if err := a.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"cores":         cfg.NumCores,
		"split_factor":  cfg.SplitFactor,
		"readset_depth": cfg.ReadSetDepth,
		"registers":     cfg.NumRegisters,
	}).Debug("configuration loaded")

	return cfg, nil
}

func newLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	return logger, nil
}
