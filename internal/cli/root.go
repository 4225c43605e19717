// Package cli implements the wall command line client.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memorialwall/internal/config"
	"memorialwall/internal/logging"
	"memorialwall/internal/store/local"
	"memorialwall/internal/store/remote"
	"memorialwall/internal/wall"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "text" | "json"
	Timeout    time.Duration

	cfg config.Config
	log *zap.SugaredLogger
}

// ValidFormats defines the allowed output formats
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the wall CLI
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "wall",
		Short:         "Read and write the memorial message wall",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file overriding environment settings")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "timeout for store requests (0 waits indefinitely)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewPostCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))

	return cmd
}

func (o *RootOptions) init() error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}

	// .envファイルがあれば読み込み
	_ = godotenv.Load()

	o.cfg = config.Load()
	if o.ConfigFile != "" {
		if err := config.ApplyFile(&o.cfg, o.ConfigFile); err != nil {
			return err
		}
	}

	// CLI は既定で警告以上のみ出力
	env := o.cfg.Env
	if !o.Verbose {
		env = "production"
	}
	logger, err := logging.New(env, o.Verbose)
	if err != nil {
		return err
	}
	if !o.Verbose {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}
	o.log = logger.Sugar()
	return nil
}

// openStore picks the store variant once, from configuration
func (o *RootOptions) openStore() wall.Store {
	if o.cfg.UsesRemote() {
		o.log.Debugf("Using remote store at %s", o.cfg.RemoteURL)
		return remote.New(o.cfg.RemoteURL, o.log,
			remote.WithOrigin(o.cfg.Origin),
			remote.WithHTTPClient(&http.Client{Timeout: o.Timeout}),
		)
	}
	o.log.Debugf("Using local store in %s", o.cfg.LocalDir)
	return local.New(o.cfg.LocalDir, o.log)
}

// requestContext applies --timeout to ctx
func (o *RootOptions) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}
	return context.WithCancel(ctx)
}

// isValidFormat checks if the format is one of the allowed values
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
