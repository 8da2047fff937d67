package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/briandowns/spinner"
	"github.com/charmbracelet/log"

	"glean/internal/browser"
	"glean/internal/config"
	"glean/internal/crawler"
	"glean/internal/embed"
	"glean/internal/filter"
	"glean/internal/writer"
)

// CLIFlags mirror the config file; a set flag wins over the file value.
type CLIFlags struct {
	ConfigFile string        `help:"Path to YAML configuration file." name:"config"`
	URL        string        `help:"Seed address to crawl." short:"u"`
	Prompt     string        `help:"Free-text prompt label attached to every record." short:"p"`
	Selector   string        `help:"CSS selector for content extraction." short:"s"`
	Pages      int           `help:"Maximum number of distinct pages to visit." default:"0"`
	Timeout    time.Duration `help:"Per-navigation timeout." default:"0"`
	Output     string        `help:"Path to the JSON output file." short:"o"`

	EmbedEndpoint string `help:"OpenAI-compatible embeddings endpoint; enables the index pipeline."`
	EmbedModel    string `help:"Embedding model name."`
	IndexFile     string `help:"Path to the vector index output file."`

	Debug bool `help:"Enable debug logging." default:"false"`
}

func (f CLIFlags) merge(cfg config.Config) config.Config {
	if f.URL != "" {
		cfg.URL = f.URL
	}
	if f.Prompt != "" {
		cfg.Prompt = f.Prompt
	}
	if f.Selector != "" {
		cfg.Selector = f.Selector
	}
	if f.Pages > 0 {
		cfg.Pages = f.Pages
	}
	if f.Timeout > 0 {
		cfg.Timeout = config.Duration(f.Timeout)
	}
	if f.Output != "" {
		cfg.Output = f.Output
	}
	if f.EmbedEndpoint != "" {
		cfg.Embedding.Endpoint = f.EmbedEndpoint
	}
	if f.EmbedModel != "" {
		cfg.Embedding.Model = f.EmbedModel
	}
	if f.IndexFile != "" {
		cfg.IndexFile = f.IndexFile
	}
	return cfg
}

func main() {
	var flags CLIFlags
	kong.Parse(&flags,
		kong.Name("glean"),
		kong.Description("Crawl a rendered website and extract prompt-guided, relevance-filtered content."))

	if flags.Debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config.Default()
	if flags.ConfigFile != "" {
		loaded, err := config.Load(flags.ConfigFile)
		if err != nil {
			log.Fatal("could not load configuration", "path", flags.ConfigFile, "error", err)
		}
		cfg = loaded
	}
	cfg = flags.merge(cfg)

	if cfg.URL == "" {
		log.Fatal("a seed URL is required (flag --url or config file)")
	}
	if cfg.Selector == "" {
		log.Fatal("a CSS selector is required (flag --selector or config file)")
	}

	if err := run(cfg); err != nil {
		log.Fatal("scrape failed", "error", err)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b, err := browser.New()
	if err != nil {
		return err
	}
	defer b.Close()

	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond)
	s.Start()
	defer s.Stop()

	client := crawler.New(b)
	client.OnVisit = func(url string, index int) {
		s.Suffix = fmt.Sprintf(" [%d] %s", index, url)
	}

	records, err := client.Scrape(ctx, crawler.Request{
		URL:      cfg.URL,
		Prompt:   cfg.Prompt,
		Selector: cfg.Selector,
		Pages:    cfg.Pages,
		Timeout:  time.Duration(cfg.Timeout),
	})
	if err != nil {
		return err
	}
	s.Stop()

	relevance, err := filter.New()
	if err != nil {
		return err
	}
	filtered := relevance.Filter(records)
	log.Info("filtered records", "raw", len(records), "kept", len(filtered))

	if err := writer.WriteRecords(cfg.Output, filtered); err != nil {
		return err
	}
	log.Info("data saved", "path", cfg.Output)

	if cfg.Embedding.Endpoint == "" {
		return nil
	}
	return buildIndex(ctx, cfg, filtered)
}

// buildIndex embeds the filtered contents and persists a flat
// nearest-neighbor index next to the JSON output.
func buildIndex(ctx context.Context, cfg config.Config, records []crawler.Record) error {
	if len(records) == 0 {
		log.Warn("no records to embed, skipping index build")
		return nil
	}

	client, err := embed.NewClient(cfg.Embedding)
	if err != nil {
		return err
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Content
	}

	vectors, err := client.Embed(ctx, texts)
	if err != nil {
		return err
	}

	index, err := embed.BuildIndex(vectors)
	if err != nil {
		return err
	}
	if err := index.WriteFile(cfg.IndexFile); err != nil {
		return err
	}

	log.Info("index created", "path", cfg.IndexFile, "vectors", index.Len(), "dim", index.Dim())
	return nil
}
