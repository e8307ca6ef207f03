// Command schoolctl edits role permissions and module visibility against a
// running schoolhub API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolhub/internal/client"
	"schoolhub/internal/config"
	"schoolhub/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	// Global flags
	baseURL string
	token   string
	timeout time.Duration
	retries int
	verbose bool
	output  string

	log *zap.Logger
	api *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "schoolctl",
	Short: "Manage schoolhub roles from the command line",
	Long: `schoolctl reads and edits role settings on a schoolhub server.

Module toggles are saved one role at a time with the full module map.
Permission matrices are validated locally before they are sent.

The access token is read from --token or SCHOOLHUB_TOKEN.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		var err error
		log, err = logger.New(level, "console", "schoolctl")
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if output != "text" && output != "yaml" {
			return fmt.Errorf("unknown output format %q (want text or yaml)", output)
		}
		if token == "" {
			token = os.Getenv("SCHOOLHUB_TOKEN")
		}
		api = client.New(client.Options{
			BaseURL:    baseURL,
			Timeout:    timeout,
			RetryCount: retries,
			Token:      token,
		}, log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	cfg, _ := config.Load()

	rootCmd.PersistentFlags().StringVar(&baseURL, "api", cfg.APIBaseURL, "schoolhub API base URL (or set API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Access token (or set SCHOOLHUB_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", cfg.APITimeout, "Per-request timeout")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 2, "Retries for read requests")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format: text or yaml")

	modulesCmd.AddCommand(modulesListCmd, modulesSetCmd, modulesNavCmd)
	permissionsCmd.AddCommand(permissionsShowCmd, permissionsSetCmd)
	rootCmd.AddCommand(modulesCmd, permissionsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// writeYAML encodes v with two-space indentation
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
