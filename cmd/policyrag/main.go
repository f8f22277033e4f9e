package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/joho/godotenv"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/viant/afsc/gs"
	_ "github.com/viant/afsc/s3"
	_ "github.com/viant/bigquery"
	_ "modernc.org/sqlite" // pure Go sqlite driver

	"policyrag/assistant"
	"policyrag/docgen"
	pmcp "policyrag/mcp"
	"policyrag/service"
	"policyrag/vectordb/meta"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()
	startGops()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "generate":
		generateCmd(os.Args[2:])
	case "process":
		processCmd(os.Args[2:])
	case "search":
		searchCmd(os.Args[2:])
	case "ask":
		askCmd(os.Args[2:])
	case "chat":
		chatCmd(os.Args[2:])
	case "status":
		statusCmd(os.Args[2:])
	case "export":
		exportCmd(os.Args[2:])
	case "serve":
		serveCmd(os.Args[2:])
	case "version":
		fmt.Printf("policyrag %s\n", version)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: policyrag <command> [options]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  generate Write the bundled sample policy PDFs")
	fmt.Fprintln(os.Stderr, "  process  Reconcile the policy corpus into the vector index")
	fmt.Fprintln(os.Stderr, "  search   Query the indexed corpus by similarity")
	fmt.Fprintln(os.Stderr, "  ask      Answer one question grounded in the corpus")
	fmt.Fprintln(os.Stderr, "  chat     Interactive question answering with history")
	fmt.Fprintln(os.Stderr, "  status   Show per-document processing status")
	fmt.Fprintln(os.Stderr, "  export   Publish the chunk corpus to a warehouse table")
	fmt.Fprintln(os.Stderr, "  serve    Expose the corpus tools over MCP")
	fmt.Fprintln(os.Stderr, "  version  Print the version")
}

func generateCmd(args []string) {
	flags := flag.NewFlagSet("generate", flag.ExitOnError)
	out := flags.String("out", "sample_policies", "output directory for the sample PDFs")
	flags.Parse(args)

	paths, err := docgen.Generate(*out)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	for _, path := range paths {
		fmt.Println(path)
	}
}

func processCmd(args []string) {
	flags := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml (optional, defaults to ~/.policyrag/config.yaml if present)")
	location := flags.String("location", "", "corpus location (overrides config)")
	include := flags.String("include", "", "comma-separated include patterns")
	exclude := flags.String("exclude", "", "comma-separated exclude patterns")
	concurrency := flags.Int("concurrency", 0, "parallel document workers (overrides config)")
	verbose := flags.Bool("verbose", false, "log per-document progress")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := loadServiceConfig(*configPath)
	if *location != "" {
		cfg.Corpus.Location = *location
	}
	if patterns := parseCSV(*include); len(patterns) > 0 {
		cfg.Corpus.Include = patterns
	}
	if patterns := parseCSV(*exclude); len(patterns) > 0 {
		cfg.Corpus.Exclude = patterns
	}
	if *concurrency > 0 {
		cfg.Corpus.Concurrency = *concurrency
	}

	var opts []service.Option
	if *verbose {
		opts = append(opts, service.WithLogf(log.Printf))
	}
	svc := newService(cfg, opts...)
	defer func() { _ = svc.Close() }()

	stats, err := svc.Process(ctx, "")
	if err != nil {
		log.Fatalf("process: %v", err)
	}
	log.Printf("processed=%d new=%d updated=%d unchanged=%d skipped=%d deleted=%d chunks_added=%d chunks_removed=%d",
		stats.Processed, stats.New, stats.Updated, stats.Unchanged, stats.Skipped, stats.Deleted, stats.ChunksAdded, stats.ChunksRemoved)
}

func searchCmd(args []string) {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml (optional)")
	query := flags.String("query", "", "query text (required)")
	prompt := flags.String("prompt", "", "alias for --query")
	limit := flags.Int("limit", 0, "max results (default from config)")
	mcpAddr := flags.String("mcp-addr", "", "search through a running MCP server instead of locally")
	flags.Parse(args)

	if *query == "" && *prompt != "" {
		*query = *prompt
	}
	if *query == "" {
		flags.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *mcpAddr != "" {
		out, err := mcpSearch(ctx, *mcpAddr, &pmcp.SearchInput{Query: *query, Limit: *limit})
		if err != nil {
			log.Fatalf("search: %v", err)
		}
		printMatches(out.Results)
		return
	}

	svc := newService(loadServiceConfig(*configPath))
	defer func() { _ = svc.Close() }()

	docs, err := svc.Search(ctx, *query, *limit)
	if err != nil {
		log.Fatalf("search: %v", err)
	}
	matches := make([]pmcp.SearchMatch, 0, len(docs))
	for _, doc := range docs {
		matches = append(matches, pmcp.SearchMatch{
			Source:  meta.GetString(doc.Metadata, meta.SourceKey),
			Page:    meta.GetInt(doc.Metadata, meta.PageKey),
			Section: meta.GetString(doc.Metadata, meta.SectionKey),
			Score:   doc.Score,
			Content: doc.PageContent,
		})
	}
	printMatches(matches)
}

func askCmd(args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml (optional)")
	question := flags.String("question", "", "question text (required)")
	prompt := flags.String("prompt", "", "alias for --question")
	mcpAddr := flags.String("mcp-addr", "", "ask through a running MCP server instead of locally")
	flags.Parse(args)

	if *question == "" && *prompt != "" {
		*question = *prompt
	}
	if *question == "" {
		flags.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *mcpAddr != "" {
		out, err := mcpAsk(ctx, *mcpAddr, &pmcp.AskInput{Question: *question})
		if err != nil {
			log.Fatalf("ask: %v", err)
		}
		printAnswer(out.Answer, out.Sources)
		return
	}

	svc := newService(loadServiceConfig(*configPath))
	defer func() { _ = svc.Close() }()

	answer, err := svc.Ask(ctx, *question, nil)
	if err != nil {
		log.Fatalf("ask: %v", err)
	}
	printAnswer(answer.Text, answer.Sources)
}

func statusCmd(args []string) {
	flags := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml (optional)")
	location := flags.String("location", "", "corpus location (overrides config)")
	mcpAddr := flags.String("mcp-addr", "", "query a running MCP server instead of locally")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *mcpAddr != "" {
		out, err := mcpStatus(ctx, *mcpAddr)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		printStatus(out.Status)
		return
	}

	cfg := loadServiceConfig(*configPath)
	if *location != "" {
		cfg.Corpus.Location = *location
	}
	svc := newService(cfg)
	defer func() { _ = svc.Close() }()

	status, err := svc.Status(ctx)
	if err != nil {
		log.Fatalf("status: %v", err)
	}
	printStatus(status)
}

func exportCmd(args []string) {
	flags := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml (optional)")
	driver := flags.String("driver", "", "warehouse sql driver (auto-detect from dsn if empty)")
	dsn := flags.String("dsn", "", "warehouse dsn (overrides config)")
	table := flags.String("table", "", "warehouse table (overrides config)")
	batch := flags.Int("batch", 0, "insert batch size (overrides config)")
	flags.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := loadServiceConfig(*configPath)
	if *driver != "" {
		cfg.Export.Driver = *driver
	}
	if *dsn != "" {
		cfg.Export.DSN = *dsn
	}
	if *table != "" {
		cfg.Export.Table = *table
	}
	if *batch > 0 {
		cfg.Export.Batch = *batch
	}
	if cfg.Export.Driver == "" && cfg.Export.DSN != "" {
		detected, ok := detectDriver(cfg.Export.DSN)
		if !ok {
			log.Fatalf("export: unable to detect driver from dsn")
		}
		cfg.Export.Driver = detected
	}

	svc := newService(cfg, service.WithLogf(log.Printf))
	defer func() { _ = svc.Close() }()

	stats, err := svc.Export(ctx)
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	log.Printf("export done table=%s documents=%d chunks=%d", stats.Table, stats.Documents, stats.Chunks)
}

func printMatches(matches []pmcp.SearchMatch) {
	for _, match := range matches {
		content := match.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		header := fmt.Sprintf("score=%.4f source=%s", match.Score, match.Source)
		if match.Page > 0 {
			header += fmt.Sprintf(" page=%d", match.Page)
		}
		if match.Section != "" {
			header += fmt.Sprintf(" section=%q", match.Section)
		}
		fmt.Printf("%s\n%s\n\n", header, content)
	}
}

func printAnswer(text string, sources []assistant.Source) {
	fmt.Println(text)
	if len(sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for _, source := range sources {
		line := "  " + source.Path
		if source.Page > 0 {
			line += fmt.Sprintf(" page %d", source.Page)
		}
		if source.Section != "" {
			line += fmt.Sprintf(" (%s)", source.Section)
		}
		fmt.Printf("%s score=%.4f\n", line, source.Score)
	}
}

func printStatus(status *service.Status) {
	if status == nil {
		return
	}
	fmt.Printf("manifest=%s documents=%d chunks=%d\n", status.ManifestURL, status.TotalDocuments, status.TotalChunks)
	for _, doc := range status.Documents {
		fmt.Printf("  %s chunks=%d last_processed=%s\n", doc.Path, doc.Chunks, doc.LastProcessed.Format(time.RFC3339))
	}
}

func loadServiceConfig(path string) *service.Config {
	pathVal := resolveConfigPath(path)
	if pathVal == "" {
		return &service.Config{}
	}
	cfg, err := service.LoadConfig(pathVal)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return cfg
}

func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(home, ".policyrag", "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

func newService(cfg *service.Config, opts ...service.Option) *service.Service {
	svc, err := service.New(cfg, opts...)
	if err != nil {
		log.Fatalf("service init: %v", err)
	}
	return svc
}

func detectDriver(dsn string) (string, bool) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", false
	}
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres", true
	case strings.HasPrefix(lower, "mysql://"):
		return "mysql", true
	case strings.HasPrefix(lower, "bigquery://"), strings.HasPrefix(lower, "bigquery:"), strings.HasPrefix(lower, "bq://"):
		return "bigquery", true
	case strings.HasPrefix(lower, "file:"), lower == ":memory:", strings.HasSuffix(lower, ".sqlite"), strings.HasSuffix(lower, ".db"):
		return "sqlite", true
	case strings.Contains(lower, "@tcp("), strings.Contains(lower, "@unix("):
		return "mysql", true
	}
	return "", false
}

func parseCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func startGops() {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Printf("gops: %v", err)
	}
}
