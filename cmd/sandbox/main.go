// Command sandbox runs JavaScript inside a WebAssembly guest sandbox.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/js-sandbox/dispatch"
	"github.com/wippyai/js-sandbox/engine"
	"github.com/wippyai/js-sandbox/guest"
	"github.com/wippyai/js-sandbox/sandbox"
	"github.com/wippyai/js-sandbox/shim"
)

var (
	cfg     = defaultSettings()
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run JavaScript inside an isolated WebAssembly guest.",
	Long: `sandbox loads the guest image, compiles a script once with Init and runs it
with Exec. Without --guest the guest runs in process, which is useful for
trying scripts but gives no memory isolation.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	_ = godotenv.Load()

	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "YAML config file")
	f.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.String("guest", cfg.Guest, "path to the guest .wasm image")
	f.Bool("local", cfg.Local, "run the guest in process even when --guest is set")
	f.String("heap", cfg.Heap.String(), "guest heap limit, e.g. 32MiB")
	f.String("stack", cfg.Stack.String(), "guest stack limit, e.g. 1MiB")
	f.Duration("timeout", cfg.Timeout, "per-call timeout, 0 disables")

	rootCmd.AddCommand(runCmd, replCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := cfg.loadEnv(os.LookupEnv); err != nil {
		return err
	}
	if cfgFile != "" {
		if err := cfg.loadFile(cfgFile); err != nil {
			return err
		}
	}
	if err := cfg.applyFlags(cmd.Flags()); err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	installLogger(log)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = lvl
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func installLogger(log *zap.Logger) {
	sandbox.SetLogger(log.Named("sandbox"))
	guest.SetLogger(log.Named("guest"))
	engine.SetLogger(log.Named("engine"))
	dispatch.SetLogger(log.Named("dispatch"))
	shim.SetLogger(log.Named("shim"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
