package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corvid-labs/corpus/internal/app"
	"github.com/corvid-labs/corpus/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		tenantID string
		userID   string
		limit    int32
	)

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search indexed content",
		Long: `Runs a blended search: full-text ranking over titles, summaries and
bodies, boosted by embedding similarity for items that have one. Supports
websearch syntax ("exact phrase", -excluded, or).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				results, err := a.Engine.Search(ctx, search.Query{
					Text:       strings.Join(args, " "),
					TenantID:   tenantID,
					UserID:     userID,
					MaxResults: limit,
				})
				if err != nil {
					return err
				}
				printResults(results)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "restrict results to a tenant")
	cmd.Flags().StringVar(&userID, "user", "", "restrict results to a user")
	cmd.Flags().Int32Var(&limit, "limit", 0, "maximum results (0 = configured default)")
	return cmd
}

func printResults(results []search.ScoredResult) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}

	for i, r := range results {
		title := r.Item.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%2d. %s  [score %.3f]\n", i+1, title, r.Score)
		fmt.Printf("    id=%s  type=%s  created=%s\n",
			r.Item.ID, r.Item.ContentType, r.Item.CreatedAt.Format("2006-01-02"))
		if snippet := makeSnippet(r.Item.Summary, r.Item.TextContent); snippet != "" {
			fmt.Printf("    %s\n", snippet)
		}
	}
}

// makeSnippet prefers the summary and falls back to the first line of the
// body, clipped to a terminal-friendly width.
func makeSnippet(summary, body string) string {
	s := summary
	if s == "" {
		s = body
	}
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxLen = 120
	if len(s) > maxLen {
		clipped := s[:maxLen]
		if i := strings.LastIndexByte(clipped, ' '); i > 0 {
			clipped = clipped[:i]
		}
		s = clipped + "…"
	}
	return s
}
