package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"marginalia/internal/anchor"
	"marginalia/internal/config"
	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/highlight"
	"marginalia/internal/palette"
	"marginalia/internal/repository/sqlite"
	serviceAnnotation "marginalia/internal/service/annotation"

	"github.com/spf13/cobra"
)

// app is one CLI invocation's open store
type app struct {
	store  *serviceAnnotation.Store
	linker *serviceAnnotation.NoteLinker
	pages  *serviceAnnotation.PageAnnotator
	close  func() error
	out    io.Writer
}

type rootOptions struct {
	dbPath  string
	reader  string
	verbose bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	cfg := config.Load()
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "annotate",
		Short: "Manage reader annotations in a local SQLite file",
		Long: `annotate works on the same snapshot store the server uses with STORAGE=sqlite.

It can list, export, import and clear a reader's bookmarks, highlights and notes,
and re-anchor highlights against a page's text to check they still resolve.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.dbPath, "db", cfg.SQLitePath, "SQLite database file")
	root.PersistentFlags().StringVar(&opts.reader, "reader", os.Getenv("MARGINALIA_READER"), "Reader id the annotations belong to")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log store activity to stderr")

	open := func(cmd *cobra.Command) (*app, error) {
		return openApp(cmd.Context(), opts, cmd.OutOrStdout())
	}

	root.AddCommand(
		newDocumentsCmd(open),
		newListCmd(open),
		newExportCmd(open),
		newImportCmd(open),
		newClearCmd(open),
		newNoteCmd(open),
		newResolveCmd(open),
		newHighlightCmd(open),
	)
	return root
}

func openApp(ctx context.Context, opts *rootOptions, out io.Writer) (*app, error) {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if ctx == nil {
		ctx = context.Background()
	}
	db, err := sqlite.Open(ctx, opts.dbPath)
	if err != nil {
		return nil, err
	}
	registry, err := palette.NewRegistry()
	if err != nil {
		db.Close()
		return nil, err
	}

	store := serviceAnnotation.NewStore(opts.reader, sqlite.NewSnapshotRepository(db, logger), registry, logger)
	return &app{
		store:  store,
		linker: serviceAnnotation.NewNoteLinker(store, logger),
		pages:  serviceAnnotation.NewPageAnnotator(store, highlight.NewApplier(registry, logger), registry, logger),
		close:  db.Close,
		out:    out,
	}, nil
}

type opener func(cmd *cobra.Command) (*app, error)

// withApp opens the store, runs fn and closes the store
func withApp(open opener, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, a, args)
	}
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDocumentsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List annotated documents",
		Args:  cobra.NoArgs,
		RunE: withApp(open, func(cmd *cobra.Command, a *app, args []string) error {
			docs, err := a.store.Documents(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range docs {
				fmt.Fprintf(a.out, "%s\t%d\n", d.DocumentID, d.Count)
			}
			return nil
		}),
	}
}

func newListCmd(open opener) *cobra.Command {
	var kind string
	var page int

	cmd := &cobra.Command{
		Use:   "list <document>",
		Short: "List a document's annotations",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, a *app, args []string) error {
			var kinds []models.Kind
			if kind != "" {
				k := models.Kind(kind)
				if !k.Valid() {
					return fmt.Errorf("unknown kind %q", kind)
				}
				kinds = append(kinds, k)
			}

			var records []*models.Record
			var err error
			switch {
			case page > 0:
				records, err = a.store.QueryByPage(cmd.Context(), args[0], page, kinds...)
			case len(kinds) == 1:
				records, err = a.store.QueryByKind(cmd.Context(), args[0], kinds[0])
			default:
				records, err = a.store.List(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			for _, r := range records {
				line := fmt.Sprintf("%s\tp%d\t%s\t%s", r.ID, r.PageIndex, r.Kind, r.Color)
				if r.Text != "" {
					line += "\t" + strconv.Quote(r.Text)
				}
				if r.RelatedTo != nil {
					line += "\t-> " + *r.RelatedTo
				}
				fmt.Fprintln(a.out, line)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only show one kind (bookmark, highlight, note)")
	cmd.Flags().IntVar(&page, "page", 0, "Only show one page (1-based)")
	return cmd
}

func newExportCmd(open opener) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <document>",
		Short: "Write a document's annotations as a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, a *app, args []string) error {
			snap, err := a.store.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return serviceAnnotation.EncodeSnapshot(a.out, snap)
			}

			var buf bytes.Buffer
			if err := serviceAnnotation.EncodeSnapshot(&buf, snap); err != nil {
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported %d annotations to %s\n", len(snap.Annotations), output)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge a snapshot file into its document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, a *app, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			snap, err := serviceAnnotation.DecodeSnapshot(f)
			if err != nil {
				return err
			}
			n, err := a.store.Import(cmd.Context(), snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "imported %d annotations into %s\n", n, snap.DocumentID)
			return nil
		}),
	}
}

func newClearCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <document>",
		Short: "Delete every annotation on a document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(open, func(cmd *cobra.Command, a *app, args []string) error {
			n, err := a.store.Count(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.store.ClearAll(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "cleared %d annotations from %s\n", n, args[0])
			return nil
		}),
	}
}

func newNoteCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "note <document> <annotation-id> <text>",
		Short: "Attach a note to a bookmark or highlight",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(open, func(cmd *cobra.Command, a *app, args []string) error {
			note, err := a.linker.Attach(cmd.Context(), args[0], args[1], args[2], nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, note.ID)
			return nil
		}),
	}
}

func newResolveCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <document> <page> <text-file>",
		Short: "Re-anchor a page's highlights against its text",
		Long: `resolve reads the page text (one run per line, "-" for stdin) and prints where each
highlight on the page lands, plus the ids of highlights whose text is gone.`,
		Args: cobra.ExactArgs(3),
		RunE: withApp(open, func(cmd *cobra.Command, a *app, args []string) error {
			page, runs, err := readPage(cmd, args[1], args[2])
			if err != nil {
				return err
			}
			marks, err := a.pages.MarksForPage(cmd.Context(), args[0], page, runs)
			if err != nil {
				return err
			}
			return a.printJSON(marks)
		}),
	}
}

func newHighlightCmd(open opener) *cobra.Command {
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "highlight <document> <page> <file>",
		Short: "Print a page with its highlights marked",
		Long: `highlight paints the page's highlights onto its text. Plain text is printed with
each highlight wrapped in [[ ]]; with --html the file is an HTML fragment and the
output is the fragment with marker spans added.`,
		Args: cobra.ExactArgs(3),
		RunE: withApp(open, func(cmd *cobra.Command, a *app, args []string) error {
			if asHTML {
				page, err := parsePage(args[1])
				if err != nil {
					return err
				}
				data, err := readInput(cmd, args[2])
				if err != nil {
					return err
				}
				out, marks, err := a.pages.RenderHTML(cmd.Context(), args[0], page, string(data))
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, out)
				reportConflicts(cmd.ErrOrStderr(), marks.Conflicts, marks.Unresolved)
				return nil
			}

			page, runs, err := readPage(cmd, args[1], args[2])
			if err != nil {
				return err
			}
			surface := highlight.NewRunSurface(runs)
			marks, err := a.pages.Paint(cmd.Context(), args[0], page, surface)
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, seg := range surface.Segments() {
				if seg.Marker != nil {
					b.WriteString("[[" + seg.Text + "]]")
					continue
				}
				b.WriteString(seg.Text)
			}
			fmt.Fprint(a.out, b.String())
			reportConflicts(cmd.ErrOrStderr(), marks.Conflicts, marks.Unresolved)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "Treat the file as an HTML fragment")
	return cmd
}

func reportConflicts(w io.Writer, conflicts []svc.Conflict, unresolved []string) {
	for _, c := range conflicts {
		fmt.Fprintf(w, "conflict: %s: %s\n", c.AnnotationID, c.Reason)
	}
	for _, id := range unresolved {
		fmt.Fprintf(w, "unresolved: %s\n", id)
	}
}

func parsePage(raw string) (int, error) {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("page must be a positive integer, got %q", raw)
	}
	return page, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// readPage loads a page's text as runs, one per line with its line break kept
func readPage(cmd *cobra.Command, rawPage, path string) (int, []anchor.Run, error) {
	page, err := parsePage(rawPage)
	if err != nil {
		return 0, nil, err
	}
	data, err := readInput(cmd, path)
	if err != nil {
		return 0, nil, err
	}

	lines := strings.SplitAfter(string(data), "\n")
	runs := make([]anchor.Run, 0, len(lines))
	for i, line := range lines {
		if line == "" {
			continue
		}
		runs = append(runs, anchor.Run{Ref: i + 1, Content: line})
	}
	return page, runs, nil
}
