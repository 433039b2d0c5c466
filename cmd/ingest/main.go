package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"research-assistant-be/internal/bootstrap"
	"research-assistant-be/internal/config"
	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/service"
	"research-assistant-be/internal/tracer"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type ingestFlags struct {
	dataDir    string
	collection string
	indexDir   string
	backend    string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	flags := ingestFlags{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index a directory of documents into the persistent collection",
		Long: `Walks the data directory recursively and indexes every .txt, .md and .pdf
file into the configured vector collection. Unsupported files and files
that fail to load are reported and skipped. Exits non-zero when no
document could be indexed.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyFlags(cfg, flags)
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "directory to ingest (default from DATA_DIR)")
	cmd.Flags().StringVar(&flags.collection, "collection", "", "collection name (default from INDEX_COLLECTION_NAME)")
	cmd.Flags().StringVar(&flags.indexDir, "index-dir", "", "sqlite index directory (default from INDEX_DIR)")
	cmd.Flags().StringVar(&flags.backend, "backend", "", "index backend: sqlite or pgvector (default from INDEX_BACKEND)")

	return cmd
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cfg *config.Config, f ingestFlags) {
	if f.dataDir != "" {
		cfg.Ingest.DataDir = f.dataDir
	}
	if f.collection != "" {
		cfg.Index.Collection = f.collection
	}
	if f.indexDir != "" {
		cfg.Index.Directory = f.indexDir
	}
	if f.backend != "" {
		cfg.Index.Backend = f.backend
	}
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.LogLevel, cfg.App.Environment == "production")

	shutdownTracer := tracer.InitTracer("research-assistant-ingest", sysLogger)
	defer shutdownTracer(context.Background())

	infra, err := bootstrap.NewInfrastructure(ctx, cfg, sysLogger)
	if err != nil {
		return err
	}
	defer infra.Close()

	ingest := service.NewIngestService(
		infra.Loader,
		infra.Indexer,
		infra.Corpus,
		cfg.Index.Collection,
		infra.CorpusChunking,
		cfg.Ingest.Topic,
		infra.Publisher,
		sysLogger,
	)

	report, err := ingest.Ingest(ctx, cfg.Ingest.DataDir)
	if report != nil {
		printSummary(out, report)
	}
	return err
}

func printSummary(out io.Writer, r *dto.IngestReport) {
	heading := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	heading.Fprintf(out, "Ingestion into %q\n", r.Collection)
	fmt.Fprintf(out, "  files found:   %d\n", r.Discovered)
	ok.Fprintf(out, "  indexed:       %d documents, %d chunks\n", r.Loaded, r.Chunks)

	if len(r.Skipped) > 0 {
		warn.Fprintf(out, "  skipped:       %d unsupported\n", len(r.Skipped))
		for _, path := range r.Skipped {
			warn.Fprintf(out, "    - %s\n", path)
		}
	}
	if len(r.Failed) > 0 {
		bad.Fprintf(out, "  failed:        %d\n", len(r.Failed))
		for _, f := range r.Failed {
			bad.Fprintf(out, "    - %s: %s\n", f.Path, f.Error)
		}
	}
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "ingest failed: %v\n", err)
		stop()
		os.Exit(1)
	}
}
