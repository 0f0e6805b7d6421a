// Curator builds newsletters for subscribers and maintains the source catalog.
//
// Usage:
//
//	curator run                       # one newsletter pass over active users
//	curator schedule --interval 6h    # repeat the pass on an interval
//	curator curate --topics a,b       # print a curation run as JSON
//	curator sources seed [--file f]   # load the source catalog
//	curator users add --id u1 ...     # create or update a subscriber
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shDupont/merculy/internal/accounts"
	"github.com/shDupont/merculy/internal/app"
	"github.com/shDupont/merculy/internal/catalog"
	"github.com/shDupont/merculy/internal/config"
	"github.com/shDupont/merculy/internal/logger"
	"github.com/shDupont/merculy/internal/models"
	"github.com/shDupont/merculy/internal/newsletter"
)

type userLister interface {
	ListActiveUsers(ctx context.Context) ([]models.User, error)
}

type newsletterBuilder interface {
	BuildAll(ctx context.Context, users []models.User) (built int, failed int)
}

type sourceIndexer interface {
	IndexSource(ctx context.Context, ch models.SourceChannel) error
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "curator",
		Short:        "Newsletter curation and catalog maintenance",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(curateCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(usersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles what every subcommand needs.
type env struct {
	log   *slog.Logger
	cfg   *config.Curator
	comps *app.Components
}

func setup() (*env, error) {
	log := logger.New("curator")
	cfg, err := config.LoadCurator()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	comps, err := app.Build(cfg.Common, cfg.Curation, log)
	if err != nil {
		return nil, err
	}
	return &env{log: log, cfg: cfg, comps: comps}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Build newsletters for every active user once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return e.withBuilder(ctx, func(users userLister, b newsletterBuilder) error {
				return runPass(ctx, e.log, users, b)
			})
		},
	}
}

func scheduleCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Build newsletters on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = e.cfg.Interval
			}
			ctx, stop := signalContext()
			defer stop()

			return e.withBuilder(ctx, func(users userLister, b newsletterBuilder) error {
				e.log.Info("curator scheduled", slog.Duration("interval", interval))
				schedule(ctx, e.log, interval, func(ctx context.Context) {
					if err := runPass(ctx, e.log, users, b); err != nil {
						e.log.Warn("newsletter pass failed (will retry on next interval)", slog.Any("err", err))
					}
				})
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "time between passes (default CURATOR_INTERVAL)")
	return cmd
}

func curateCmd() *cobra.Command {
	var (
		topicsFlag  []string
		sourcesFlag []string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Curate news for topics and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(topicsFlag) == 0 {
				return fmt.Errorf("--topics is required")
			}
			e, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			res := e.comps.Curation(nil).GetNewsByTopics(ctx, topicsFlag, limit, sourcesFlag)
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringSliceVar(&topicsFlag, "topics", nil, "comma separated topics")
	cmd.Flags().StringSliceVar(&sourcesFlag, "sources", nil, "followed source IDs")
	cmd.Flags().IntVar(&limit, "limit", 20, "total number of articles")
	return cmd
}

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage the source catalog",
	}

	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create indices and load catalog entries from a YAML file or the default outlets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			channels := defaultSources(e.comps.Topics.Domains())
			if file != "" {
				if channels, err = loadSources(file); err != nil {
					return err
				}
			}

			if err := e.comps.Store.EnsureIndices(ctx); err != nil {
				return fmt.Errorf("ensure indices: %w", err)
			}
			n, err := seedSources(ctx, e.comps.Store, channels)
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d sources\n", n)
			return err
		},
	}
	seed.Flags().StringVarP(&file, "file", "f", "", "YAML file with a sources list")

	cmd.AddCommand(seed)
	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage subscribers in the accounts database",
	}

	var (
		u        models.User
		inactive bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create or update a subscriber",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadCurator()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if u.NewsletterFormat != models.FormatSingle && u.NewsletterFormat != models.FormatByTopic {
				return fmt.Errorf("--format must be %q or %q", models.FormatSingle, models.FormatByTopic)
			}
			u.Active = !inactive

			ctx, stop := signalContext()
			defer stop()
			store, err := accounts.Open(ctx, cfg.AccountsDSN)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SaveUser(ctx, u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved user %s\n", u.ID)
			return nil
		},
	}
	add.Flags().StringVar(&u.ID, "id", "", "user ID")
	add.Flags().StringVar(&u.Email, "email", "", "e-mail address")
	add.Flags().StringVar(&u.Name, "name", "", "display name")
	add.Flags().StringSliceVar(&u.Interests, "interests", nil, "topics of interest")
	add.Flags().StringSliceVar(&u.FollowedChannels, "channels", nil, "followed source IDs")
	add.Flags().StringVar(&u.NewsletterFormat, "format", models.FormatSingle, "single or by_topic")
	add.Flags().BoolVar(&inactive, "inactive", false, "store the user as inactive")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("email")

	cmd.AddCommand(add)
	return cmd
}

// withBuilder opens the accounts database and hands fn a newsletter builder.
func (e *env) withBuilder(ctx context.Context, fn func(userLister, newsletterBuilder) error) error {
	store, err := accounts.Open(ctx, e.cfg.AccountsDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	builder := newsletter.NewBuilder(e.comps.Curation(nil), e.comps.Store, e.log)
	return fn(store, builder)
}

func runPass(ctx context.Context, log *slog.Logger, users userLister, b newsletterBuilder) error {
	start := time.Now()
	list, err := users.ListActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	built, failed := b.BuildAll(ctx, list)
	log.Info("newsletter pass completed",
		slog.Int("users", len(list)),
		slog.Int("newsletters", built),
		slog.Int("failed", failed),
		slog.Duration("took", time.Since(start).Round(time.Millisecond)),
	)
	return nil
}

// schedule calls fn immediately and then every interval until ctx is done.
func schedule(ctx context.Context, log *slog.Logger, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

type sourceFile struct {
	Sources []struct {
		ID     string `yaml:"id"`
		Domain string `yaml:"domain"`
		Name   string `yaml:"name"`
		Active *bool  `yaml:"active"`
	} `yaml:"sources"`
}

// loadSources reads catalog entries from YAML. Entries default to active, an empty ID to
// the domain and an empty name to one derived from the domain.
func loadSources(path string) ([]models.SourceChannel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var f sourceFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	out := make([]models.SourceChannel, 0, len(f.Sources))
	for i, s := range f.Sources {
		domain := strings.ToLower(strings.TrimSpace(s.Domain))
		if domain == "" {
			return nil, fmt.Errorf("sources[%d]: domain is required", i)
		}
		ch := models.SourceChannel{ID: strings.TrimSpace(s.ID), Domain: domain, Name: strings.TrimSpace(s.Name), Active: true}
		if ch.ID == "" {
			ch.ID = domain
		}
		if ch.Name == "" {
			ch.Name = catalog.DisplayName(domain)
		}
		if s.Active != nil {
			ch.Active = *s.Active
		}
		out = append(out, ch)
	}
	return out, nil
}

func defaultSources(domains []string) []models.SourceChannel {
	out := make([]models.SourceChannel, 0, len(domains))
	for _, d := range domains {
		out = append(out, models.SourceChannel{ID: d, Domain: d, Name: catalog.DisplayName(d), Active: true})
	}
	return out
}

func seedSources(ctx context.Context, store sourceIndexer, channels []models.SourceChannel) (int, error) {
	for i, ch := range channels {
		if err := store.IndexSource(ctx, ch); err != nil {
			return i, fmt.Errorf("seed %s: %w", ch.ID, err)
		}
	}
	return len(channels), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
