package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pbaille/folksonomy/internal/api"
	"github.com/pbaille/folksonomy/internal/config"
	"github.com/pbaille/folksonomy/internal/corpus"
	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/pbaille/folksonomy/internal/engine"
	"github.com/pbaille/folksonomy/internal/render"
	"github.com/pbaille/folksonomy/internal/store"
	"github.com/spf13/cobra"
)

var (
	overrides config.Overrides
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "folksonomy",
		Short: "Tag index, related entries and tag clouds for a blog corpus",
	}

	rootCmd.PersistentFlags().StringVar(&overrides.ConfigPath, "config", config.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&overrides.DataDir, "datadir", "", "corpus directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&overrides.CachePath, "cache", "", "snapshot cache path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(entriesCmd())
	rootCmd.AddCommand(relatedCmd())
	rootCmd.AddCommand(cloudCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newEngine() (*engine.Engine, config.Config, *slog.Logger, error) {
	logger := newLogger()

	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, cfg, nil, err
	}
	st, err := store.ForFormat(cfg.CacheFormat)
	if err != nil {
		return nil, cfg, nil, err
	}
	logger.Debug("configuration resolved",
		slog.String("config", cfg.Path),
		slog.String("datadir", cfg.DataDir),
		slog.String("datadir_source", string(cfg.Sources["datadir"])),
		slog.String("cache", cfg.CachePath),
		slog.String("cache_format", cfg.CacheFormat))

	return engine.New(cfg, corpus.NewDir(cfg.DataDir), st, logger), cfg, logger, nil
}

// openEngine loads the cached snapshot or builds one.
func openEngine() (*engine.Engine, config.Config, *slog.Logger, error) {
	e, cfg, logger, err := newEngine()
	if err != nil {
		return nil, cfg, nil, err
	}
	if _, err := e.Open(); err != nil {
		return nil, cfg, nil, err
	}
	return e, cfg, logger, nil
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Rebuild the index from the corpus and overwrite the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, _, err := newEngine()
			if err != nil {
				return err
			}

			snap, err := e.Rebuild()
			if errors.Is(err, config.ErrNoCachePath) {
				return fmt.Errorf("rebuild has no effect: %w", err)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Built snapshot %s\n", snap.ID[:8])
			fmt.Printf("  %d tags, %d entries\n", snap.Matrix.Len(), snap.EntryCount())
			return nil
		},
	}
}

func tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List all tags with their entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, _, err := openEngine()
			if err != nil {
				return err
			}

			snap := e.Snapshot()
			if snap.Empty() {
				fmt.Println("No entries found. Check datadir and taggable_extensions.")
				return nil
			}

			for _, t := range snap.Matrix.Tags() {
				fmt.Printf("%5d  %s\n", len(snap.Index.Entries[t]), t.Name)
			}
			return nil
		},
	}
}

func entriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entries [tag]",
		Short: "List the entries of a tag, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, _, err := openEngine()
			if err != nil {
				return err
			}

			entries, ok := e.EntriesForTag(args[0])
			if !ok {
				return fmt.Errorf("tag not found: %s", args[0])
			}

			for _, entry := range entries {
				fmt.Printf("%s  %-40s  %s\n",
					entry.ModTime.Format("2006-01-02"), entry.ID, truncate(entry.Title, 60))
			}
			return nil
		},
	}
}

func relatedCmd() *cobra.Command {
	var html bool

	cmd := &cobra.Command{
		Use:   "related [entry|tag]",
		Short: "Show the tags and stories related to an entry, or the tags related to a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, _, err := openEngine()
			if err != nil {
				return err
			}

			rel, err := e.Related(domain.EntryID(args[0]))
			if errors.Is(err, corpus.ErrEntryNotFound) {
				// Not an entry: treat the argument as a tag.
				return printTagRelations(e, args[0])
			}
			if err != nil {
				return err
			}

			if html {
				return printFragments(render.New(cfg), rel)
			}

			fmt.Printf("%s\n", rel.Entry.Title)
			if len(rel.Tags) > 0 {
				names := make([]string, len(rel.Tags))
				for i, t := range rel.Tags {
					names[i] = t.Name
				}
				fmt.Printf("\nRelated tags: %s\n", strings.Join(names, ", "))
			}
			if len(rel.Stories) > 0 {
				fmt.Printf("\nRelated stories:\n")
				for _, s := range rel.Stories {
					fmt.Printf("  - %s  (%s)\n", truncate(s.Title, 60), s.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&html, "html", false, "print rendered HTML fragments")
	return cmd
}

func printTagRelations(e *engine.Engine, tag string) error {
	rel := e.RelatedToTag(tag)
	if len(rel) == 0 {
		fmt.Printf("No tags related to %s.\n", tag)
		return nil
	}
	for _, tc := range rel {
		fmt.Printf("%5d  %s\n", tc.Count, tc.Tag.Name)
	}
	return nil
}

func printFragments(r *render.Renderer, rel *engine.Related) error {
	storyTags, err := r.StoryTags(rel.Entry.Tags)
	if err != nil {
		return err
	}
	tags, err := r.RelatedTags(rel.Tags)
	if err != nil {
		return err
	}
	stories, err := r.RelatedStories(rel.Stories)
	if err != nil {
		return err
	}
	fmt.Println(storyTags)
	fmt.Println(tags)
	fmt.Println(stories)
	return nil
}

func cloudCmd() *cobra.Command {
	var (
		popular bool
		html    bool
	)

	cmd := &cobra.Command{
		Use:   "cloud",
		Short: "Print the tag cloud",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, _, err := openEngine()
			if err != nil {
				return err
			}

			c := e.Snapshot().Cloud
			if popular {
				c = e.Snapshot().Popular
			}

			if html {
				out, err := render.New(cfg).Cloud(c)
				if err != nil {
					return err
				}
				fmt.Println(out)
				return nil
			}

			if len(c) == 0 {
				fmt.Println("Empty cloud.")
				return nil
			}
			for _, entry := range c {
				fmt.Printf("%-9s %5d  %s\n", entry.Size, entry.Count, entry.Tag.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&popular, "popular", false, "only the popular tags")
	cmd.Flags().BoolVar(&html, "html", false, "print the rendered HTML fragment")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, logger, err := openEngine()
			if err != nil {
				return err
			}

			server := api.New(e, render.New(cfg), addr, logger)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "server address")
	return cmd
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
