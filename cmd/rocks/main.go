package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eringen/rocks"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rocks",
		Short:         "Localized developer-content site",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is normal in production.
			_ = godotenv.Load()
		},
	}
	root.AddCommand(newServeCmd(), newLoadCmd(), newDropCmd(), newVersionCmd())
	return root
}

// configFromEnv reads SiteConfig from the environment. Secrets are only
// required by commands that serve HTTP.
func configFromEnv(serving bool) rocks.SiteConfig {
	cfg := rocks.SiteConfig{
		Name:           os.Getenv("SITE_NAME"),
		URL:            os.Getenv("SITE_URL"),
		Description:    os.Getenv("SITE_DESCRIPTION"),
		Addr:           rocks.EnvOr("ADDR", ":8080"),
		DatabasePath:   rocks.EnvOr("DATABASE_PATH", "data/rocks.db"),
		TemplateDir:    rocks.EnvOr("TEMPLATE_DIR", "templates"),
		LocaleDir:      rocks.EnvOr("LOCALE_DIR", "locale"),
		DataDir:        rocks.EnvOr("DATA_DIR", "database"),
		CacheURL:       os.Getenv("CACHE_URL"),
		CachePrefix:    os.Getenv("CACHE_PREFIX"),
		DefaultLocale:  rocks.EnvOr("DEFAULT_LOCALE", "en"),
		BugReportURL:   os.Getenv("BUG_REPORT_URL"),
		CookieSecure:   rocks.EnvBool("COOKIE_SECURE"),
		Prod:           rocks.EnvBool("PROD"),
		Debug:          rocks.EnvBool("DEBUG"),
		WatchTemplates: rocks.EnvBool("WATCH_TEMPLATES"),
	}
	if serving {
		cfg.AdminPassword = rocks.MustEnv("ADMIN_PASSWORD")
		cfg.SessionSecret = rocks.MustEnv("SESSION_SECRET")
	}
	return cfg
}

func newServeCmd() *cobra.Command {
	var static string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := rocks.New(configFromEnv(true), rocks.WithStaticDir(static))
			defer app.Close()

			errc := make(chan error, 1)
			go func() { errc <- app.Start() }()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			select {
			case err := <-errc:
				return err
			case <-sig:
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.Echo.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&static, "static", rocks.EnvOr("STATIC_DIR", "static"), "directory served under /static")
	return cmd
}

// withCache opens the configured cache so imports invalidate what the
// running server memoized.
func withCache(cfg rocks.SiteConfig) ([]rocks.Option, error) {
	c, err := rocks.OpenCache(cfg.CacheURL)
	if err != nil {
		return nil, err
	}
	return []rocks.Option{rocks.WithCache(c)}, nil
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "load <authors|tutorials|playground|studio|all>",
		Short:     "Import YAML fixtures from DATA_DIR into the database",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{rocks.FixtureAuthors, rocks.FixtureTutorials, rocks.FixturePlayground, rocks.FixtureStudio, rocks.FixtureAll},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromEnv(false)
			opts, err := withCache(cfg)
			if err != nil {
				return err
			}
			app := rocks.New(cfg, opts...)
			defer app.Close()
			rep, err := app.LoadFixtures(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %s: %d saved, %d skipped\n", args[0], rep.Saved, rep.Skipped)
			return nil
		},
	}
}

func newDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Delete every author and resource (refused when PROD is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromEnv(false)
			if cfg.Prod {
				return fmt.Errorf("drop is not allowed in production")
			}
			opts, err := withCache(cfg)
			if err != nil {
				return err
			}
			app := rocks.New(cfg, opts...)
			defer app.Close()
			if err := app.DropAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "dropped all authors and resources")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rocks version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rocks %s\n", version)
		},
	}
}
