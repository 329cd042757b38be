package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	leveltensdk "levelten/sdk/go"
)

// out receives all command output.
var out io.Writer = os.Stdout

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "l10",
		Short: "Level 10 meetings CLI",
		Long: `l10 runs and drives weekly Level 10 (L10) leadership meetings.
Core concepts:
- Meeting: a recurring team meeting on a fixed weekday with a roster of members.
- Rocks: quarterly priorities, each on-track, off-track or completed.
- Headlines: short good-news or heads-up announcements.
- To-dos: seven-day action items that are done or not done.
- Issues: problems worked through Identify, Discuss, Solve; ordered by priority and resolved once.
- Ratings: every member rates the meeting 1-10; unrated members count as 5.
- Check-in: the opening segment; at least two members must be present.

'l10 serve' holds the meetings in memory and exposes the HTTP API. Every other
command talks to that server (--server, or L10_SERVER).`,
		SilenceUsage: true,
	}
	addPersistentFlags(root)
	registerCommands(root)
	return root
}

func main() {
	cobra.OnInitialize(initConfig)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("L10")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags(root *cobra.Command) {
	root.PersistentFlags().StringP("workspace", "w", ".", "directory holding l10.yml")
	root.PersistentFlags().String("server", "http://127.0.0.1:8080", "API server URL")
	root.PersistentFlags().String("base-path", "/v0", "API base path")
	root.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", root.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("base-path", root.PersistentFlags().Lookup("base-path"))
	_ = viper.BindPFlag("json", root.PersistentFlags().Lookup("json"))
}

func registerCommands(root *cobra.Command) {
	root.AddCommand(serveCmd())
	root.AddCommand(configCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(meetingCmd())
	root.AddCommand(rockCmd())
	root.AddCommand(todoCmd())
	root.AddCommand(headlineCmd())
	root.AddCommand(issueCmd())
	root.AddCommand(rateCmd())
	root.AddCommand(concludeCmd())
	root.AddCommand(messageCmd())
	root.AddCommand(checkinCmd())
	root.AddCommand(itemsCmd())
	root.AddCommand(logCmd())
}

// --- helpers ---

func newClient() *leveltensdk.Client {
	c := leveltensdk.New(viper.GetString("server"))
	c.BasePath = viper.GetString("base-path")
	return c
}

func withClient(ctx context.Context, fn func(context.Context, *leveltensdk.Client) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, newClient())
}

func printJSONOrTable(v any, table func()) error {
	if viper.GetBool("json") || table == nil {
		return printJSON(v)
	}
	table()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
