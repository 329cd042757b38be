package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"levelten/internal/app"
	"levelten/internal/config"
	"levelten/internal/logging"
	"levelten/internal/seed"
	"levelten/internal/store"
)

func loadConfig() (*config.Config, error) {
	return config.LoadOptional(viper.GetString("workspace"))
}

func serveCmd() *cobra.Command {
	var addr, seedFile, logLevel, logFormat string
	var noJournal bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long:  "Loads the seed meetings into memory and serves the API. Nothing is persisted; restarting resets every meeting.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			applyBasePath(cfg)
			if cmd.Flags().Changed("seed") {
				cfg.Seed.File = seedFile
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Log.Format = logFormat
			}
			if noJournal {
				cfg.Journal.Enabled = false
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
			a, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := a.Handler()
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving API", "addr", cfg.Server.Addr, "base_path", cfg.Server.BasePath)
			fmt.Fprintf(out, "Serving Level 10 API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&seedFile, "seed", "", "seed fixture file (default: bundled sample meetings)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "text or json")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "disable the in-memory event journal")
	return cmd
}

// applyBasePath overrides the configured base path with --base-path or
// L10_BASE_PATH when either is set.
func applyBasePath(cfg *config.Config) {
	if viper.IsSet("base-path") {
		cfg.Server.BasePath = viper.GetString("base-path")
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create l10.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default l10.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Fprintln(out, "wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate l10.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				res := map[string]any{"ok": err == nil}
				if err != nil {
					res["error"] = err.Error()
				}
				return printJSON(res)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "config OK")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	sd := &cobra.Command{
		Use:   "seed",
		Short: "Inspect seed fixtures offline",
	}
	var file string
	show := &cobra.Command{
		Use:   "show",
		Short: "List the meetings a fixture would load",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(file)
			if err != nil {
				return err
			}
			return printJSONOrTable(f, func() {
				tw := table.NewWriter()
				tw.SetOutputMirror(out)
				tw.SetTitle("Current user: " + f.CurrentUser.Name)
				tw.AppendHeader(table.Row{"ID", "Name", "Day", "Time", "Members", "Avg rating"})
				for _, m := range f.Meetings {
					tw.AppendRow(table.Row{m.ID, m.Name, m.DayOfWeek, m.Time, len(m.Members), store.AverageRating(m)})
				}
				tw.Render()
			})
		},
	}
	show.Flags().StringVar(&file, "file", "", "fixture file (default: bundled sample meetings)")
	sd.AddCommand(show)
	return sd
}
