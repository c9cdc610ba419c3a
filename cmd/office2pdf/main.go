// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the office2pdf CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/office2pdf/internal/convert"
	"github.com/pdiddy/office2pdf/internal/engine"
	"github.com/pdiddy/office2pdf/internal/history"
	"github.com/pdiddy/office2pdf/internal/logging"
	"github.com/pdiddy/office2pdf/internal/secrets"
	"github.com/pdiddy/office2pdf/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const secretsDir = ".secrets/"

var (
	// cfg is the effective configuration, loaded before every command.
	cfg types.Config

	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets map[string]string
)

// rootCmd is the base command for the office2pdf CLI.
var rootCmd = &cobra.Command{
	Use:   "office2pdf",
	Short: "Convert Word, Excel and image files to PDF",
	Long: `office2pdf converts Word (.doc, .docx), Excel (.xls, .xlsx, .xlsm, .xlsb,
.xltx, .xltm) and image (.png, .jpg, .bmp, .tif, .webp) files to PDF.

Office documents are rendered by an external engine: Microsoft Office,
docx2pdf, LibreOffice, LibreOffice in a container, or a Gotenberg service.
Engines are tried in order until one succeeds. Images are converted in-process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c

		lc := logging.Config{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			Output:      os.Stderr,
			MaxSize:     cfg.Logging.MaxSize,
			BackupCount: cfg.Logging.BackupCount,
		}
		if cfg.Logging.File {
			lc.Dir = cfg.Paths.LogDir
		}
		if err := logging.Init(lc); err != nil {
			return err
		}
		if f := viper.ConfigFileUsed(); f != "" {
			logging.Debug().Add(logging.Str("file", f)).Msg("using config file")
		}

		s, err := secrets.Load(secretsDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logging.Debug().Add(logging.Str("keys", strings.Join(secrets.Keys(s), ","))).Msg("loaded secrets")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Close()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./office2pdf.yaml or ~/.config/office2pdf/office2pdf.yaml)")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	pf.Bool("log-file", false, "also write logs to the log directory")
	pf.String("output-dir", "", "directory for converted PDFs")
	pf.String("temp-dir", "", "staging directory for in-progress PDFs")
	pf.String("history-db", "", "SQLite history database; empty string disables history")

	bindFlag("logging.level", pf.Lookup("log-level"))
	bindFlag("logging.format", pf.Lookup("log-format"))
	bindFlag("logging.file", pf.Lookup("log-file"))
	bindFlag("paths.output_dir", pf.Lookup("output-dir"))
	bindFlag("paths.temp_dir", pf.Lookup("temp-dir"))
	bindFlag("paths.history_db", pf.Lookup("history-db"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("office2pdf")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "office2pdf"))
		}
	}

	setDefaults(types.DefaultConfig())
	viper.SetEnvPrefix("OFFICE2PDF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; defaults, env and flags still apply.
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key so env variables can override it.
func setDefaults(d types.Config) {
	viper.SetDefault("conversion.method", string(d.Conversion.Method))
	viper.SetDefault("conversion.backup_method", string(d.Conversion.BackupMethod))
	viper.SetDefault("conversion.timeout", d.Conversion.Timeout)
	viper.SetDefault("conversion.dpi", d.Conversion.DPI)
	viper.SetDefault("conversion.image_format", string(d.Conversion.ImageFormat))
	viper.SetDefault("conversion.jpeg_quality", d.Conversion.JPEGQuality)
	viper.SetDefault("conversion.verify", d.Conversion.Verify)
	viper.SetDefault("conversion.skip_existing", d.Conversion.SkipExisting)
	viper.SetDefault("conversion.jobs", d.Conversion.Jobs)

	viper.SetDefault("paths.output_dir", d.Paths.OutputDir)
	viper.SetDefault("paths.temp_dir", d.Paths.TempDir)
	viper.SetDefault("paths.downloads_dir", d.Paths.DownloadsDir)
	viper.SetDefault("paths.log_dir", d.Paths.LogDir)
	viper.SetDefault("paths.history_db", d.Paths.HistoryDB)

	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
	viper.SetDefault("logging.file", d.Logging.File)
	viper.SetDefault("logging.max_size", d.Logging.MaxSize)
	viper.SetDefault("logging.backup_count", d.Logging.BackupCount)

	viper.SetDefault("engines.powershell", d.Engines.PowerShell)
	viper.SetDefault("engines.libreoffice", d.Engines.LibreOffice)
	viper.SetDefault("engines.docx2pdf", d.Engines.Docx2PDF)
	viper.SetDefault("engines.container_image", d.Engines.ContainerImage)
	viper.SetDefault("engines.gotenberg_url", d.Engines.GotenbergURL)

	viper.SetDefault("server.addr", d.Server.Addr)
	viper.SetDefault("server.max_upload", d.Server.MaxUpload)
}

// bindFlag binds a flag to a config key. Only flags the user sets override
// the key.
func bindFlag(key string, f *pflag.Flag) {
	if err := viper.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("binding %s: %v", key, err))
	}
}

// loadConfig decodes the merged viper settings and validates them.
func loadConfig() (types.Config, error) {
	var c types.Config
	if err := viper.Unmarshal(&c); err != nil {
		return types.Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := convert.ValidMethod(c.Conversion.Method); err != nil {
		return types.Config{}, fmt.Errorf("conversion.method: %w", err)
	}
	if c.Conversion.BackupMethod != "" {
		if err := convert.ValidMethod(c.Conversion.BackupMethod); err != nil {
			return types.Config{}, fmt.Errorf("conversion.backup_method: %w", err)
		}
	}
	switch c.Conversion.ImageFormat {
	case types.ImagePNG, types.ImageJPEG:
	default:
		return types.Config{}, fmt.Errorf("conversion.image_format: must be png or jpeg, got %q", c.Conversion.ImageFormat)
	}
	if c.Conversion.Jobs < 1 {
		c.Conversion.Jobs = 1
	}
	return c, nil
}

// openHistory opens the history store, or returns nil when history is disabled.
func openHistory() (*history.Store, error) {
	if cfg.Paths.HistoryDB == "" {
		return nil, nil
	}
	if dir := filepath.Dir(cfg.Paths.HistoryDB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}
	return history.NewStore(cfg.Paths.HistoryDB)
}

// newConverter wires the engine registry and history store into a Converter.
// The returned close func releases the store.
func newConverter() (*convert.Converter, *engine.Registry, *history.Store, func(), error) {
	store, err := openHistory()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	engines := engine.Default(cfg, loadedSecrets)

	var rec convert.Recorder
	closeFn := func() {}
	if store != nil {
		rec = store
		closeFn = func() {
			if err := store.Close(); err != nil {
				logging.Warn().Add(logging.ErrorField(err)).Msg("closing history")
			}
		}
	}
	return convert.New(cfg, engines, rec), engines, store, closeFn, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
