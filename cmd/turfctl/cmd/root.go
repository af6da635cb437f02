package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/turfbook/turfbook/internal/apiclient"
	"github.com/turfbook/turfbook/internal/claims"
	"github.com/turfbook/turfbook/internal/config"
	"github.com/turfbook/turfbook/internal/infra"
	"github.com/turfbook/turfbook/internal/logging"
	"github.com/turfbook/turfbook/internal/phone"
	"github.com/turfbook/turfbook/internal/session"
	"github.com/turfbook/turfbook/internal/storage"
)

var (
	apiURL      string
	storeKind   string
	profileName string

	rt *runtime
)

// runtime holds what every subcommand needs, built once per invocation.
type runtime struct {
	cfg      config.Client
	logger   *slog.Logger
	decoder  *claims.Decoder
	sessions *session.Store
	api      *apiclient.Client
	phones   *phone.Validator
	cache    *redis.Client
}

var rootCmd = &cobra.Command{
	Use:   "turfctl",
	Short: "TurfBook CLI - sign in and manage your TurfBook session",
	Long: `turfctl is a command-line client for TurfBook. It signs in with a phone number
and one-time code, keeps the session on this machine, and shows which home the
app would open for it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.APIURL = apiURL
		}
		if storeKind != "" {
			cfg.Store = storeKind
		}
		if profileName != "" {
			cfg.Profile = profileName
		}

		r, err := newRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		rt = r
		rt.sessions.Restore(cmd.Context())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if rt != nil && rt.cache != nil {
			if err := rt.cache.Close(); err != nil {
				rt.logger.Warn("close redis", slog.Any("error", err))
			}
		}
	},
}

func newRuntime(ctx context.Context, cfg config.Client) (*runtime, error) {
	logger := logging.NewConsole(os.Stderr, cfg.LogLevel)
	r := &runtime{
		cfg:     cfg,
		logger:  logger,
		decoder: claims.NewDecoder(logger),
		phones:  phone.NewValidator(cfg.PhoneRegion),
	}

	var backend storage.Store
	switch cfg.Store {
	case "memory":
		backend = storage.NewMemoryStore()
	case "redis":
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		r.cache = client
		backend = storage.NewRedisStore(client, cfg.Profile)
	default:
		fs, err := storage.NewFileStore(cfg.StoreDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		logger.Debug("using file session store", slog.String("path", fs.Path()))
		backend = fs
	}

	r.sessions = session.New(backend, r.decoder, logger)
	r.api = apiclient.New(cfg.APIURL,
		apiclient.WithTimeout(cfg.HTTPTimeout),
		apiclient.WithTokenSource(r.token),
	)
	return r, nil
}

func (r *runtime) token() string {
	if id := r.sessions.State().Identity; id != nil {
		return id.Token
	}
	return ""
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "TurfBook API base URL (default from TURF_API_URL)")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "", "Session store: file, redis or memory (default from TURF_STORE)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Session profile name for the redis store")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(logoutCmd)
}
