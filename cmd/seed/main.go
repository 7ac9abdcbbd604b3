package main

import (
	"context"
	"flag"
	"log"

	"marginalia/internal/config"
	models "marginalia/internal/domain/models/annotation"
	svc "marginalia/internal/domain/services/annotation"
	"marginalia/internal/palette"
	"marginalia/internal/repository/postgres"
	postgresAnnotation "marginalia/internal/repository/postgres/annotation"
	serviceAnnotation "marginalia/internal/service/annotation"

	"github.com/joho/godotenv"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed annotations")
	clearData := flag.Bool("clear-data", false, "Clear the demo reader's annotations (keep schema)")
	readerID := flag.String("reader", "00000000-0000-0000-0000-000000000001", "Reader id to seed annotations for")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	// Setup logger
	logger, closeLog, err := config.NewLogger(cfg, "seed")
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	if *clearData {
		log.Printf("🧹 Clearing annotations only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else if *schemaOnly {
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	} else {
		log.Printf("🌱 Seeding annotations (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	// Create database connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Drop tables if requested
	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := postgres.DropSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Printf("  ✓ Dropped %s", tables.AnnotationSnapshots)
	}

	// Run schema to ensure tables exist
	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	// Create repositories and services
	snapshots := postgresAnnotation.NewSnapshotRepository(&postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	})
	txManager := postgres.NewTransactionManager(pool, logger)
	registry, err := palette.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load palette: %v", err)
	}
	store := serviceAnnotation.NewStore(*readerID, snapshots, registry, logger)
	linker := serviceAnnotation.NewNoteLinker(store, logger)

	// Clear existing data
	log.Println("⚠️  Clearing existing annotations...")
	if err := clearReader(ctx, store); err != nil {
		log.Fatalf("Failed to clear data: %v", err)
	}

	if *clearData {
		log.Println("✅ Data cleared successfully")
		return
	}

	// Seed every document in one transaction so a failure leaves nothing behind
	log.Println("📝 Seeding annotations...")
	err = txManager.ExecTx(ctx, func(txCtx context.Context) error {
		for _, doc := range getSeedDocuments() {
			if err := seedDocument(txCtx, store, linker, doc); err != nil {
				return err
			}
			log.Printf("✅ Seeded %s (%d annotations)", doc.documentID, doc.count())
		}
		return nil
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("🎉 Seeding complete!")
}

// clearReader removes every annotation the reader holds
func clearReader(ctx context.Context, store *serviceAnnotation.Store) error {
	docs, err := store.Documents(ctx)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := store.ClearAll(ctx, d.DocumentID); err != nil {
			return err
		}
		log.Printf("  ✓ Cleared %s (%d annotations)", d.DocumentID, d.Count)
	}
	return nil
}

type seedHighlight struct {
	page  int
	color models.Color
	text  string
	notes []string
}

type seedDoc struct {
	documentID string
	highlights []seedHighlight
	bookmarks  []int
	notes      []svc.AddFields
}

func (d seedDoc) count() int {
	n := len(d.bookmarks) + len(d.notes)
	for _, h := range d.highlights {
		n += 1 + len(h.notes)
	}
	return n
}

func seedDocument(ctx context.Context, store *serviceAnnotation.Store, linker *serviceAnnotation.NoteLinker, doc seedDoc) error {
	for _, h := range doc.highlights {
		rec, err := store.Add(ctx, doc.documentID, models.KindHighlight, svc.AddFields{
			PageIndex:    h.page,
			Color:        h.color,
			Text:         h.text,
			PositionHint: models.Position{X: 0.1, Y: 0.2},
		})
		if err != nil {
			return err
		}
		for _, text := range h.notes {
			if _, err := linker.Attach(ctx, doc.documentID, rec.ID, text, nil); err != nil {
				return err
			}
		}
	}

	for _, page := range doc.bookmarks {
		if _, err := store.Add(ctx, doc.documentID, models.KindBookmark, svc.AddFields{PageIndex: page}); err != nil {
			return err
		}
	}

	for _, fields := range doc.notes {
		if _, err := store.Add(ctx, doc.documentID, models.KindNote, fields); err != nil {
			return err
		}
	}
	return nil
}

func getSeedDocuments() []seedDoc {
	return []seedDoc{
		{
			documentID: "the-great-gatsby",
			highlights: []seedHighlight{
				{
					page:  1,
					color: models.ColorYellow,
					text:  "In my younger and more vulnerable years my father gave me some advice",
					notes: []string{"The narrator frames everything through his father's advice."},
				},
				{
					page:  180,
					color: models.ColorBlue,
					text:  "So we beat on, boats against the current, borne back ceaselessly into the past.",
				},
			},
			bookmarks: []int{1, 42},
		},
		{
			documentID: "nineteen-eighty-four",
			highlights: []seedHighlight{
				{
					page:  1,
					color: models.ColorPurple,
					text:  "It was a bright cold day in April, and the clocks were striking thirteen.",
					notes: []string{"Thirteen: the world is already off by one."},
				},
			},
			bookmarks: []int{3},
			notes: []svc.AddFields{
				{PageIndex: 5, Text: "Compare the Ministry names with their actual functions.", PositionHint: models.Position{X: 0.5, Y: 0.5}},
			},
		},
	}
}
