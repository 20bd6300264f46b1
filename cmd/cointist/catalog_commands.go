package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cointist/internal/catalog"
	"cointist/internal/resolver"
	"cointist/internal/services"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain the persistent article store",
	}
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	catalogCmd.AddCommand(newCatalogLookupCommand(ctx))
	catalogCmd.AddCommand(newCatalogSearchCommand(ctx))
	return catalogCmd
}

func withCatalog(cmd *cobra.Command, ctx *commandContext, fn func(catalog.Directory) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	dir, err := catalog.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer dir.Close()
	return fn(dir)
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Upsert articles from an item document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(cmd, args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, ctx, func(dir catalog.Directory) error {
				result, err := catalog.Import(cmd.Context(), dir, items)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				total, err := dir.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d articles (%d skipped); catalog holds %d\n", result.Upserted, len(result.Skipped), total)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newCatalogLookupCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "lookup <id|slug|title>",
		Short: "Find one article by id, slug or exact title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, ctx, func(dir catalog.Directory) error {
				article, found, err := catalog.Lookup(cmd.Context(), dir, args[0])
				if err != nil {
					return err
				}
				if !found {
					return services.Wrap(services.ErrNotFound, "catalog", "lookup", "no article for "+strconv.Quote(args[0]), nil)
				}
				if jsonOut {
					return writeJSON(cmd, article)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderArticles([]catalog.Article{article}))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newCatalogSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "search <title words>",
		Short: "Rank articles by title similarity using the fuzzy thresholds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			return withCatalog(cmd, ctx, func(dir catalog.Directory) error {
				cfg := ctx.configValue()
				matches, err := dir.SearchTitle(cmd.Context(), args[0], resolver.MatchPolicy(cfg), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, matches)
				}
				if len(matches) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching articles")
					return nil
				}
				rows := make([][]string, 0, len(matches))
				for _, m := range matches {
					rows = append(rows, []string{
						strconv.FormatInt(m.Article.ID, 10),
						m.Article.Slug,
						dash(m.Article.Title),
						strconv.FormatFloat(m.Score.Overlap, 'f', 2, 64),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Slug", "Title", "Overlap"}, rows, 0, 3))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of matches")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func renderArticles(articles []catalog.Article) string {
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10),
			a.Slug,
			dash(a.OldSlug),
			dash(a.Title),
			a.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	return renderTable([]string{"ID", "Slug", "Old slug", "Title", "Updated"}, rows, 0)
}
