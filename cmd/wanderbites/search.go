package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/eringen/wanderbites"
	"github.com/eringen/wanderbites/search"
)

var (
	flagRegion      string
	flagRating      string
	flagTag         string
	flagCategory    string
	flagRemote      string
	flagInteractive bool
	flagPlain       bool
	flagDelay       time.Duration
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	matchStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B35"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search posts from the terminal",
	Long: `Search posts by text and filters.

Without --interactive the arguments are searched once. With --interactive each
line read from stdin replaces the current search; lines accept key:value terms
for region, rating, tag and category, e.g. "ramen region:asia rating:5".

Searches run in process against the configured content source, or against a
running site with --remote http://host:port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		searcher, closeFn, err := openSearcher()
		if err != nil {
			return err
		}
		defer closeFn()

		p := printer{w: cmd.OutOrStdout(), plain: flagPlain}
		if flagInteractive {
			return runInteractive(cmd.Context(), cmd.InOrStdin(), p, searcher, flagDelay)
		}
		f := search.Normalize(strings.Join(args, " "), flagRegion, flagRating, flagTag, flagCategory)
		return runOnce(cmd.Context(), p, searcher, f)
	},
}

func init() {
	searchCmd.Flags().StringVar(&flagRegion, "region", "", "region key (asia, europe, ...)")
	searchCmd.Flags().StringVar(&flagRating, "rating", "", "rating key, 1 to 5")
	searchCmd.Flags().StringVar(&flagTag, "tag", "", "tag")
	searchCmd.Flags().StringVar(&flagCategory, "category", "", "category slug")
	searchCmd.Flags().StringVar(&flagRemote, "remote", "", "search a running site instead of the content source")
	searchCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "read searches line by line from stdin")
	searchCmd.Flags().BoolVar(&flagPlain, "plain", false, "mark matches with [brackets] instead of color")
	searchCmd.Flags().DurationVar(&flagDelay, "delay", search.DefaultDelay, "debounce delay in interactive mode")
}

// openSearcher returns the searcher selected by the flags and a cleanup func.
func openSearcher() (search.Searcher, func(), error) {
	if flagRemote != "" {
		return search.NewRemoteSearcher(flagRemote, 10*time.Second), func() {}, nil
	}
	cfg, err := wanderbites.LoadConfig(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.SearchLog.Enabled = false
	app := wanderbites.New(cfg, wanderbites.ViewFuncs{}, wanderbites.WithLogger(wanderbites.NewLogger("warn", cfg.Log.Pretty)))
	if err := app.Init(); err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup: %v\n", err)
		}
	}
	return search.RepositorySearcher{Repo: app.Repo}, closeFn, nil
}

func runOnce(ctx context.Context, p printer, s search.Searcher, f search.FilterSet) error {
	state := search.State{Status: search.StatusIdle, Filters: f}
	if !f.IsEmpty() {
		res, err := s.Search(ctx, f)
		if err != nil {
			p.print(search.Present(search.State{Status: search.StatusError, Filters: f}, f.Text))
			return err
		}
		state = search.State{Status: search.StatusSuccess, Records: res.Records, Total: res.Total, Filters: f}
	}
	p.print(search.Present(state, f.Text))
	return nil
}

// runInteractive feeds every input line to an orchestrator and prints each
// state it settles in. At end of input it waits for the last search.
func runInteractive(ctx context.Context, in io.Reader, p printer, s search.Searcher, delay time.Duration) error {
	orch := search.NewOrchestrator(s,
		search.WithDelay(delay),
		search.WithOnChange(func(st search.State) {
			p.print(search.Present(st, st.Filters.Text))
		}),
	)
	defer orch.Close()

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		orch.Update(parseLine(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return err
	}

	// Input is done; let the last debounce window and its search play out.
	waitCtx, cancel := context.WithTimeout(ctx, delay+30*time.Second)
	defer cancel()
	if _, err := orch.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("search did not finish: %w", err)
	}
	return nil
}

// parseLine splits a line into key:value filter terms and free text.
func parseLine(line string) search.FilterSet {
	var text []string
	var region, rating, tag, category string
	for _, field := range strings.Fields(line) {
		key, val, ok := strings.Cut(field, ":")
		if !ok {
			key, val, ok = strings.Cut(field, "=")
		}
		if !ok {
			text = append(text, field)
			continue
		}
		switch strings.ToLower(key) {
		case "region":
			region = val
		case "rating":
			rating = val
		case "tag":
			tag = val
		case "category":
			category = val
		default:
			text = append(text, field)
		}
	}
	return search.Normalize(strings.Join(text, " "), region, rating, tag, category)
}

// printer writes displays as text. Matches are colored unless plain is set.
type printer struct {
	w     io.Writer
	plain bool
}

func (p printer) print(d search.Display) {
	fmt.Fprintln(p.w, headingStyle.Render(d.Heading))
	if d.Message != "" {
		fmt.Fprintln(p.w, d.Message)
	}
	for _, it := range d.Items {
		fmt.Fprintf(p.w, "\n  %s\n", p.segments(it.Title))
		var meta []string
		for _, s := range []string{it.Location, it.Region, it.Rating} {
			if s != "" {
				meta = append(meta, s)
			}
		}
		if len(meta) > 0 {
			fmt.Fprintf(p.w, "  %s\n", dimStyle.Render(strings.Join(meta, " · ")))
		}
		if len(it.Excerpt) > 0 {
			fmt.Fprintf(p.w, "  %s\n", p.segments(it.Excerpt))
		}
		fmt.Fprintf(p.w, "  %s\n", dimStyle.Render("/posts/"+it.Slug+"/"))
	}
	fmt.Fprintln(p.w)
}

func (p printer) segments(segs []search.Segment) string {
	if p.plain {
		return search.PlainText(segs, "[", "]")
	}
	var b strings.Builder
	for _, s := range segs {
		if s.Match {
			b.WriteString(matchStyle.Render(s.Text))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
