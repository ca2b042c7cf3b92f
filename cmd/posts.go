package main

import (
	"fmt"
	"text/tabwriter"

	dbinit "mathblog/internal/db"
	"mathblog/internal/frontmatter"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Sync the posts directory into the database once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.importer.Run(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "added %d, updated %d, unchanged %d, removed %d\n",
			report.Added, report.Updated, report.Unchanged, report.Removed)
		for _, f := range report.Failures {
			fmt.Fprintf(out, "skipped %s\n", f.Error())
		}
		return nil
	},
}

var listFilter dbinit.Filter

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported posts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.store.List(cmd.Context(), listFilter)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tSLUG\tAUTHOR\tLAYOUT")
		for _, p := range posts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.PublishedAt.Format("2006-01-02"), p.Slug, p.Author, p.Layout)
		}
		return tw.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Print an imported post in its front matter format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		post, err := a.store.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		raw, err := frontmatter.Marshal(frontmatter.Document{
			Header: frontmatter.Header{
				Layout: post.Layout,
				Author: post.Author,
				Title:  post.Title,
				Date:   post.PublishedAt,
				Tags:   post.Tags,
			},
			Body: post.Body,
		})
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	},
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listFilter.Author, "author", "", "only posts by this author")
	f.StringVar(&listFilter.Layout, "layout", "", "only posts with this layout")
	f.StringVar(&listFilter.Tag, "tag", "", "only posts with this tag")
	f.StringVarP(&listFilter.Query, "query", "q", "", "substring of the title or body")
	f.IntVarP(&listFilter.Limit, "limit", "n", 0, "maximum number of posts, 0 for all")
}
