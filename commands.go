package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go-mod.ewintr.nl/vidsync/fetch"
	"go-mod.ewintr.nl/vidsync/handler"
	"go-mod.ewintr.nl/vidsync/registry"
	"go-mod.ewintr.nl/vidsync/retry"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type rootOptions struct {
	Verbose bool
	JSON    bool
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "vidsync",
		Short:         "vidsync keeps a video store in sync with youtube channels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "machine readable output")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewFindChannelCommand(opts))

	return cmd
}

type syncOptions struct {
	*rootOptions
	Config   string
	Channel  string
	Parallel int
	Lookback int
	DeepScan bool
}

func NewSyncCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &syncOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import new videos for every configured channel",
		Long: `Sync walks the uploads of every channel in the config file, newest first,
and stores the videos it has not seen before. Known videos are skipped, so
running it again only picks up what is new. Pages are scanned until a page
holds nothing new, plus a lookback margin for stragglers.

Example:
  vidsync sync
  vidsync sync --channel lexfridman -v
  vidsync sync --deep-scan --parallel 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "channels-config.json", "path to the channel config file")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "only sync the channel with this slug")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of channels to sync at the same time")
	cmd.Flags().IntVar(&opts.Lookback, "lookback", 1, "pages without new videos to scan before stopping")
	cmd.Flags().BoolVar(&opts.DeepScan, "deep-scan", false, "walk every page instead of stopping at known videos")

	return cmd
}

func runSync(cmd *cobra.Command, opts *syncOptions) error {
	logger := newLogger(opts.Verbose)

	channels, err := registry.Load(opts.Config)
	if err != nil {
		return usageError("load channel config: %v", err)
	}
	channels, err = channels.Filter(opts.Channel)
	if err != nil {
		return usageError("%v", err)
	}

	apiKey := getParam("YOUTUBE_API_KEY", "")
	if apiKey == "" {
		return usageError("YOUTUBE_API_KEY is required")
	}
	requestTimeout, err := time.ParseDuration(getParam("REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return usageError("parse REQUEST_TIMEOUT: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(logger)
	if err != nil {
		return err
	}
	defer st.close()

	ytClient, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return fmt.Errorf("unable to create youtube service: %w", err)
	}

	syncer := fetch.NewSyncer(st.videos, st.channels, fetch.NewYoutube(ytClient), fetch.Config{
		RequestTimeout: requestTimeout,
		Retry:          retry.DefaultConfig(),
		LookbackPages:  opts.Lookback,
		Concurrency:    opts.Parallel,
		DeepScan:       opts.DeepScan,
	}, logger)

	outcomes := syncer.Sync(ctx, channels)
	if err := printOutcomes(cmd.OutOrStdout(), outcomes, opts.JSON); err != nil {
		return err
	}
	if fetch.AnyFailed(outcomes) {
		return &exitError{code: exitFailure, err: errors.New("one or more channels failed to sync")}
	}

	return nil
}

func printOutcomes(out io.Writer, outcomes []fetch.Outcome, asJSON bool) error {
	if asJSON {
		type view struct {
			Channel  string `json:"channel"`
			Inserted int    `json:"inserted"`
			Skipped  int    `json:"skipped"`
			Failed   int    `json:"failed"`
			Error    string `json:"error,omitempty"`
		}
		views := make([]view, 0, len(outcomes))
		for _, o := range outcomes {
			v := view{Channel: o.Channel, Inserted: o.Inserted, Skipped: o.Skipped, Failed: o.Failed}
			if o.Err != nil {
				v.Error = o.Err.Error()
			}
			views = append(views, v)
		}

		return json.NewEncoder(out).Encode(views)
	}

	for _, o := range outcomes {
		line := fmt.Sprintf("%s: %d new, %d known, %d failed", o.Channel, o.Inserted, o.Skipped, o.Failed)
		if o.Err != nil {
			line += fmt.Sprintf(" (%s)", o.Err)
		}
		fmt.Fprintln(out, line)
	}

	return nil
}

type serveOptions struct {
	*rootOptions
	Port int
}

func NewServeCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stored channels and videos over http",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 8080, "port to listen on")

	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	logger := newLogger(opts.Verbose)

	st, err := openStore(logger)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: handler.NewServer(st.videos, st.channels, logger),
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()
	logger.Info("http server started", slog.Int("port", opts.Port))

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	logger.Info("http server stopped")

	return nil
}

func NewFindChannelCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find-channel <query>",
		Short: "Look up youtube channel ids by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFindChannel(cmd, rootOpts, strings.Join(args, " "))
		},
	}

	return cmd
}

func runFindChannel(cmd *cobra.Command, opts *rootOptions, query string) error {
	apiKey := getParam("YOUTUBE_API_KEY", "")
	if apiKey == "" {
		return usageError("YOUTUBE_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ytClient, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return fmt.Errorf("unable to create youtube service: %w", err)
	}

	matches, err := fetch.NewYoutube(ytClient).FindChannel(ctx, query)
	if err != nil {
		return fmt.Errorf("search channels: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		type view struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		views := make([]view, 0, len(matches))
		for _, m := range matches {
			views = append(views, view{ID: string(m.ID), Title: m.Title})
		}

		return json.NewEncoder(out).Encode(views)
	}

	if len(matches) == 0 {
		fmt.Fprintln(out, "no channels found")

		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(out, "%s\t%s\n", m.ID, m.Title)
	}

	return nil
}
