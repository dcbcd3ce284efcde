package cli

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/lookup"
)

type cacheFlags struct {
	server string
	apiKey string
}

func newCacheCommand(app *App) *cobra.Command {
	f := &cacheFlags{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the lookup cache of a running server",
	}
	cmd.PersistentFlags().StringVar(&f.server, "server", defaultServer(app.Config), "server address")
	cmd.PersistentFlags().StringVar(&f.apiKey, "api-key", defaultAPIKey(app.Config), "API key sent as X-API-Key")

	cmd.AddCommand(newCacheStatsCommand(f), newCacheResetCommand(f))
	return cmd
}

func newCacheStatsCommand(f *cacheFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached lookup tables and hit counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := NewUI(cmd.OutOrStdout())
			c, err := newAPIClient(f.server, f.apiKey)
			if err != nil {
				return err
			}

			var stats lookup.CacheStats
			if err := c.do(cmd.Context(), http.MethodGet, "/api/lookup-cache", nil, &stats); err != nil {
				return reportAPIError(ui, err)
			}

			ui.Bold("Lookup cache: %d of %d entries", stats.Entries, stats.Capacity)
			for _, p := range stats.Paths {
				ui.Plain("  %s", p)
			}
			ui.Info("hits %d, misses %d, evictions %d", stats.Hits, stats.Misses, stats.Evictions)
			return nil
		},
	}
}

func newCacheResetCommand(f *cacheFlags) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop every cached lookup table, or one with --path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui := NewUI(cmd.OutOrStdout())
			c, err := newAPIClient(f.server, f.apiKey)
			if err != nil {
				return err
			}

			var q url.Values
			if path != "" {
				q = url.Values{"path": {path}}
			}
			var out struct {
				Path    string `json:"path"`
				Evicted bool   `json:"evicted"`
			}
			if err := c.do(cmd.Context(), http.MethodDelete, "/api/lookup-cache", q, &out); err != nil {
				return reportAPIError(ui, err)
			}

			switch {
			case path == "":
				ui.Success("Lookup cache reset")
			case out.Evicted:
				ui.Success("Evicted %s", out.Path)
			default:
				ui.Warning("%s was not cached", out.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "evict only this lookup file")
	return cmd
}

func reportAPIError(ui *UI, err error) error {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		return ui.fail(err)
	}
	ui.Error("%s (Code: %s)", apiErr.Message, apiErr.Code)
	if apiErr.Action != "" {
		ui.Plain("  %s", apiErr.Action)
	}
	return &reportedError{err: err}
}

// defaultServer is the configured listen address, with a wildcard host
// replaced by loopback.
func defaultServer(cfg *config.Config) string {
	if cfg == nil {
		return "http://127.0.0.1:8080"
	}
	addr := cfg.Server.Addr()
	if strings.HasPrefix(addr, "0.0.0.0:") || strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1:" + addr[strings.LastIndex(addr, ":")+1:]
	}
	return "http://" + addr
}

func defaultAPIKey(cfg *config.Config) string {
	if cfg == nil || len(cfg.Security.APIKeys) == 0 {
		return ""
	}
	return cfg.Security.APIKeys[0]
}
