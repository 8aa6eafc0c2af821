// Command skymarshal is the interactive CLI: login, export, search,
// bulk deletion, and network analysis against a Bluesky account.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"Skymarshal/internal/atproto/client"
	"Skymarshal/internal/config"
	"Skymarshal/internal/core/auth"
	"Skymarshal/internal/core/content"
	"Skymarshal/internal/db/store"
	apperrors "Skymarshal/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "skymarshal",
		Usage: "manage, search, and analyze a Bluesky account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pds",
				Usage:   "PDS host",
				EnvVars: []string{"SKYMARSHAL_PDS"},
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			statsCommand(),
			searchCommand(),
			deleteCommand(),
			unfollowCommand(),
			networkCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			color.Yellow("cancelled")
			os.Exit(130)
		}
		color.Red("error: %s", apperrors.UserMessage(err))
		os.Exit(1)
	}
}

// env bundles the wired application for one command invocation.
type env struct {
	root     string
	settings config.Settings
	client   *client.Client
	manager  *auth.Manager
	store    *content.Store
	cache    *store.Store
}

func buildEnv(cctx *cli.Context) (*env, error) {
	root, err := config.Dir()
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	host := cctx.String("pds")
	if host == "" {
		host = settings.PDSHost
	}

	c := client.New(host, client.Options{
		Timeout:         time.Duration(settings.HTTPTimeoutSecs) * time.Second,
		RateLimitPoints: settings.RateLimitPoints,
		RateLimitWindow: time.Duration(settings.RateLimitWindowSecs) * time.Second,
	})
	manager := auth.NewManager(c, root, terminalPrompter{})

	cache, err := store.Open(cacheURL(root))
	if err != nil {
		return nil, err
	}
	if err := cache.Migrate(); err != nil {
		cache.Close()
		return nil, err
	}

	exporter := content.NewExporter(c, root, settings)
	return &env{
		root:     root,
		settings: settings,
		client:   c,
		manager:  manager,
		store:    content.NewStore(exporter, c, cache, settings),
		cache:    cache,
	}, nil
}

func (e *env) close() { _ = e.cache.Close() }

func cacheURL(root string) string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return root + "/profile_cache.sqlite"
}

// requireAuth resumes or prompts for a session.
func (e *env) requireAuth(ctx context.Context) error {
	if !e.manager.EnsureAuthenticated(ctx) {
		return apperrors.New(apperrors.Auth, "login required")
	}
	return nil
}
