package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"Skymarshal/internal/core/deletion"
	"Skymarshal/internal/core/models"
	"Skymarshal/internal/core/network"
	"Skymarshal/internal/core/progress"
	"Skymarshal/internal/core/search"
	apperrors "Skymarshal/pkg/errors"
)

// terminalProgress rewrites a single status line per operation.
var terminalProgress = progress.Func(func(op string, current, total int) {
	if total > 0 {
		fmt.Fprintf(os.Stderr, "\r%s %d/%d", op, current, total)
	} else {
		fmt.Fprintf(os.Stderr, "\r%s %d", op, current)
	}
})

type terminalPrompter struct{}

func (terminalPrompter) PromptCredentials(_ context.Context) (string, string, error) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Handle: ")
	handle, err := reader.ReadString('\n')
	if err != nil {
		return "", "", err
	}
	fmt.Print("App password: ")
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(handle), strings.TrimSpace(password), nil
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "authenticate and persist a session",
		ArgsUsage: "<handle>",
		Action: func(cctx *cli.Context) error {
			e, err := buildEnv(cctx)
			if err != nil {
				return err
			}
			defer e.close()

			handle := cctx.Args().First()
			if handle == "" {
				return apperrors.New(apperrors.Validation, "usage: skymarshal login <handle>")
			}
			fmt.Print("App password: ")
			reader := bufio.NewReader(os.Stdin)
			password, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			if err := e.manager.Login(cctx.Context, handle, strings.TrimSpace(password)); err != nil {
				return err
			}
			color.Green("Logged in as %s (%s)", e.manager.Handle(), e.manager.DID())
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "clear the persisted session",
		Action: func(cctx *cli.Context) error {
			e, err := buildEnv(cctx)
			if err != nil {
				return err
			}
			defer e.close()
			e.manager.Logout()
			color.Green("Logged out")
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "download content and print a summary",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "records per category (0 = configured default)"},
			&cli.BoolFlag{Name: "refresh", Usage: "force a fresh export"},
		},
		Action: func(cctx *cli.Context) error {
			e, err := buildEnv(cctx)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.requireAuth(cctx.Context); err != nil {
				return err
			}

			err = e.manager.CallWithReauth(cctx.Context, func() error {
				_, err := e.store.EnsureLoaded(cctx.Context, e.manager.DID(), e.manager.Handle(), nil,
					cctx.Int("limit"), cctx.Bool("refresh"), terminalProgress)
				return err
			})
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}

			sum := e.store.Summary(e.manager.Handle())
			color.Cyan("Content for %s", e.manager.Handle())
			fmt.Printf("  posts:   %d\n", sum.Posts)
			fmt.Printf("  replies: %d\n", sum.Replies)
			fmt.Printf("  likes:   %d\n", sum.Likes)
			fmt.Printf("  reposts: %d\n", sum.Reposts)
			fmt.Printf("  total:   %d\n", sum.Total)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "filter the downloaded content",
		ArgsUsage: "[keywords...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "type", Usage: "content types (posts, replies, likes, reposts, all)"},
			&cli.StringFlag{Name: "since", Usage: "start date (YYYY-MM-DD or RFC3339)"},
			&cli.StringFlag{Name: "until", Usage: "end date"},
			&cli.IntFlag{Name: "min-likes", Value: -1},
			&cli.IntFlag{Name: "max-likes", Value: -1},
			&cli.IntFlag{Name: "limit", Value: 25},
			&cli.StringFlag{Name: "sort", Value: string(search.SortNewest)},
		},
		Action: func(cctx *cli.Context) error {
			e, err := buildEnv(cctx)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.requireAuth(cctx.Context); err != nil {
				return err
			}
			if err := e.manager.CallWithReauth(cctx.Context, func() error {
				_, err := e.store.EnsureLoaded(cctx.Context, e.manager.DID(), e.manager.Handle(), nil, 0, false, terminalProgress)
				return err
			}); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr)

			filter := search.Filter{
				Keywords:     cctx.Args().Slice(),
				ContentTypes: cctx.StringSlice("type"),
				Sort:         search.SortMode(cctx.String("sort")),
				Limit:        cctx.Int("limit"),
			}
			if filter.StartDate, err = search.ParseDateBound(cctx.String("since"), false); err != nil {
				return err
			}
			if filter.EndDate, err = search.ParseDateBound(cctx.String("until"), true); err != nil {
				return err
			}
			if v := cctx.Int("min-likes"); v >= 0 {
				filter.MinLikes = &v
			}
			if v := cctx.Int("max-likes"); v >= 0 {
				filter.MaxLikes = &v
			}

			engine := search.NewEngine(e.client, e.settings.UseSubjectEngagementForReposts)
			results, total, err := engine.Search(cctx.Context, e.store.Items(e.manager.Handle()), filter, terminalProgress)
			if err != nil {
				return err
			}

			color.Cyan("%d matches (showing %d)", total, len(results))
			for _, item := range results {
				printItem(item)
			}
			return nil
		},
	}
}

func printItem(item *models.ContentItem) {
	created := "          "
	if item.CreatedAt != nil {
		created = item.CreatedAt.Format("2006-01-02")
	}
	text := item.Text
	if item.IsInteraction() {
		text = item.SubjectURI()
	}
	if len(text) > 70 {
		text = text[:67] + "..."
	}
	fmt.Printf("%s  %-6s  %4d♥ %3d↻ %3d↩  %s\n    %s\n",
		created, item.Type, item.LikeCount, item.RepostCount, item.ReplyCount, text, item.URI)
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete records by at:// URI",
		ArgsUsage: "<uri>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "skip the confirmation prompt"},
		},
		Action: func(cctx *cli.Context) error {
			uris := cctx.Args().Slice()
			if len(uris) == 0 {
				return apperrors.New(apperrors.Validation, "usage: skymarshal delete <uri>...")
			}

			e, err := buildEnv(cctx)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.requireAuth(cctx.Context); err != nil {
				return err
			}

			if !cctx.Bool("yes") {
				color.Yellow("About to permanently delete %d records.", len(uris))
				fmt.Print("Type 'delete' to confirm: ")
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.TrimSpace(answer) != "delete" {
					color.Yellow("aborted")
					return nil
				}
			}

			engine := deletion.New(e.client, e.store)
			var deleted int
			var itemErrs []deletion.ItemError
			err = e.manager.CallWithReauth(cctx.Context, func() error {
				deleted, itemErrs = engine.Delete(cctx.Context, e.manager.DID(), e.manager.Handle(), uris)
				return nil
			})
			if err != nil {
				return err
			}

			color.Green("Deleted %d of %d", deleted, len(uris))
			for _, ie := range itemErrs {
				color.Red("  %s: %s", ie.URI, ie.Message)
			}
			return nil
		},
	}
}

func unfollowCommand() *cli.Command {
	return &cli.Command{
		Name:      "unfollow",
		Usage:     "remove the follow record for an account",
		ArgsUsage: "<handle-or-did>",
		Action: func(cctx *cli.Context) error {
			actor := cctx.Args().First()
			if actor == "" {
				return apperrors.New(apperrors.Validation, "usage: skymarshal unfollow <handle-or-did>")
			}

			e, err := buildEnv(cctx)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.requireAuth(cctx.Context); err != nil {
				return err
			}

			targetDID := actor
			if !strings.HasPrefix(actor, "did:") {
				profile, err := e.client.GetProfile(cctx.Context, actor)
				if err != nil {
					return err
				}
				targetDID = profile.DID
			}

			engine := deletion.New(e.client, nil)
			if err := e.manager.CallWithReauth(cctx.Context, func() error {
				return engine.Unfollow(cctx.Context, e.manager.DID(), targetDID)
			}); err != nil {
				return err
			}
			color.Green("Unfollowed %s", actor)
			return nil
		},
	}
}

func networkCommand() *cli.Command {
	return &cli.Command{
		Name:      "network",
		Usage:     "fetch and analyze an account's social graph",
		ArgsUsage: "<handle>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "depth", Value: string(network.ModeBalanced), Usage: "fast, balanced, or detailed"},
			&cli.BoolFlag{Name: "analytics", Value: true, Usage: "compute graph metrics"},
		},
		Action: func(cctx *cli.Context) error {
			handle := cctx.Args().First()
			if handle == "" {
				return apperrors.New(apperrors.Validation, "usage: skymarshal network <handle>")
			}

			e, err := buildEnv(cctx)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.requireAuth(cctx.Context); err != nil {
				return err
			}

			fetcher := network.New(e.client, e.cache, e.settings)
			var snap *network.Snapshot
			err = e.manager.CallWithReauth(cctx.Context, func() error {
				var err error
				snap, err = fetcher.Fetch(cctx.Context, handle, network.Params{
					Mode:             network.Mode(cctx.String("depth")),
					IncludeAnalytics: cctx.Bool("analytics"),
				}, terminalProgress)
				return err
			})
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}

			printSnapshot(snap)
			return nil
		},
	}
}

func printSnapshot(snap *network.Snapshot) {
	var mutuals, following, followers int
	for _, node := range snap.Nodes {
		switch node.Relationship {
		case network.RelMutual:
			mutuals++
		case network.RelFollowing:
			following++
		case network.RelFollower:
			followers++
		}
	}
	color.Cyan("Network of %s: %d accounts, %d edges", snap.TargetHandle, len(snap.Nodes), len(snap.Edges))
	fmt.Printf("  mutuals:        %d\n", mutuals)
	fmt.Printf("  following only: %d\n", following)
	fmt.Printf("  followers only: %d\n", followers)
	if m := snap.Metadata.GraphMetrics; m != nil {
		fmt.Printf("  density:        %.4f\n", m.Density)
		fmt.Printf("  clusters:       %d (modularity %.3f)\n", m.ClusterCount, m.Modularity)
		fmt.Printf("  most central:   %s\n", m.TopPageRank)
	}
	if len(snap.Metadata.Errors) > 0 {
		color.Yellow("  %d partial failures during fetch", len(snap.Metadata.Errors))
	}
}
