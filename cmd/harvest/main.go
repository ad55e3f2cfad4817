package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/berteloot/harvest"
	"github.com/berteloot/harvest/config"
	"github.com/berteloot/harvest/dedup"
	"github.com/berteloot/harvest/metrics"
	"github.com/berteloot/harvest/reader"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line flags override config file and environment values
	baseURL := flag.String("url", "", "Base URL of the site to harvest (required)")
	scope := flag.String("scope", config.GetEnv("HARVEST_SCOPE", "default"), "Fingerprint scope for duplicate checking (HARVEST_SCOPE)")
	maxURLs := flag.Int("max-urls", 0, "Maximum candidate URLs to return (0 = unlimited)")
	maxPosts := flag.Int("max-posts", 0, "Maximum posts the pagination walker may collect (0 = unlimited)")
	since := flag.String("since", "", "Keep only posts published on or after this date (YYYY-MM-DD)")
	until := flag.String("until", "", "Keep only posts published on or before this date (YYYY-MM-DD)")
	skipValidation := flag.Bool("skip-validation", false, "Skip per-page article classification")
	scrape := flag.Bool("scrape", false, "Extract full content for the new URLs (spends provider credits)")
	selection := flag.String("select", "", "Comma-separated 1-based indices of new URLs to scrape (default: all)")
	asJSON := flag.Bool("json", false, "Emit results as JSON instead of a text report")
	metricsAddr := flag.String("metrics-addr", config.GetEnv("HARVEST_METRICS_ADDR", ""), "Address to serve Prometheus metrics on, e.g. :9090 (HARVEST_METRICS_ADDR)")

	flag.Parse()

	if *baseURL == "" {
		flag.Usage()
		os.Exit(2)
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	if *metricsAddr != "" {
		go func() {
			log.Printf("INFO: Serving metrics on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, collector.Handler()); err != nil {
				log.Printf("ERROR: Metrics server failed: %v", err)
			}
		}()
	}

	store, err := openStore(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to open fingerprint store: %v", err)
	}
	defer store.Close()

	client, err := buildReaderClient(cfg, collector)
	if err != nil {
		log.Fatalf("Failed to build reader client: %v", err)
	}

	pipeline, err := harvest.New(harvest.Config{
		Reader:  client,
		Store:   store,
		Metrics: collector,
	})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, shutting down", sig)
		cancel()
	}()

	opts := harvest.DiscoverOptions{
		MaxURLs:        *maxURLs,
		MaxPosts:       *maxPosts,
		SkipValidation: *skipValidation,
	}
	if opts.Since, err = parseDateFlag(*since); err != nil {
		log.Fatalf("Invalid -since value: %v", err)
	}
	if opts.Until, err = parseDateFlag(*until); err != nil {
		log.Fatalf("Invalid -until value: %v", err)
	}

	discovered, err := pipeline.Discover(ctx, *baseURL, opts)
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}

	checked, err := pipeline.CheckDuplicates(ctx, discovered.URLs, *scope)
	if err != nil {
		log.Fatalf("Duplicate check failed: %v", err)
	}

	var posts []harvest.ScrapedPost
	if *scrape && len(checked.New) > 0 {
		targets, err := selectTargets(checked.New, *selection)
		if err != nil {
			log.Fatalf("Invalid -select value: %v", err)
		}

		posts, err = pipeline.ScrapeSelected(ctx, targets, func(index, total int, url string) {
			log.Printf("INFO: Scraping %d/%d: %s", index, total, url)
		})
		if err != nil {
			log.Fatalf("Scraping failed: %v", err)
		}

		if err := pipeline.RegisterIngested(ctx, *scope, posts); err != nil {
			log.Fatalf("Failed to register ingested posts: %v", err)
		}
	}

	if *asJSON {
		printJSON(discovered, checked, posts)
	} else {
		printReport(discovered, checked, posts)
	}
}

// openStore builds the fingerprint store named by the config.
func openStore(cfg config.StoreConfig) (dedup.Store, error) {
	switch cfg.Type {
	case "sqlite", "":
		return dedup.NewSQLiteStore(cfg.DSN)
	case "postgres":
		return dedup.NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store type %q (want sqlite or postgres)", cfg.Type)
	}
}

// buildReaderClient assembles the provider stack: the hosted reader when an
// API key is configured, the local renderer as its fallback when one is
// configured, direct HTTP otherwise. Without an API key the pipeline still
// discovers and duplicate-checks but cannot use the paid map strategy.
func buildReaderClient(cfg *config.Config, collector *metrics.Collector) (*reader.Client, error) {
	var fallback reader.Fetcher = reader.NewDirectFetcher(3)
	if cfg.Renderer.Command != "" {
		parts := strings.Fields(cfg.Renderer.Command)
		renderer, err := reader.NewCommandProvider(parts[0], parts[1:], cfg.Renderer.Timeout)
		if err != nil {
			return nil, err
		}
		fallback = renderer
	}

	if cfg.Reader.APIKey == "" {
		log.Printf("WARN: No reader API key configured, using %s fetching only", fallback.Name())
		return reader.NewClient(fallback, reader.ClientOptions{
			MinDelay:       cfg.Reader.MinDelay,
			ConcurrencyCap: cfg.Reader.ConcurrencyCap,
			Observer:       collector,
		})
	}

	provider, err := reader.NewHostedProvider(reader.HostedOptions{
		BaseURL:      cfg.Reader.BaseURL,
		APIKey:       cfg.Reader.APIKey,
		ProxyCountry: cfg.Reader.ProxyCountry,
	})
	if err != nil {
		return nil, err
	}

	return reader.NewClient(provider, reader.ClientOptions{
		MinDelay:       cfg.Reader.MinDelay,
		ConcurrencyCap: cfg.Reader.ConcurrencyCap,
		Fallback:       fallback,
		Observer:       collector,
	})
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// selectTargets resolves the -select flag against the new-URL list. An empty
// selection means everything.
func selectTargets(candidates []harvest.DiscoveredURL, selection string) ([]string, error) {
	if selection == "" {
		targets := make([]string, len(candidates))
		for i, c := range candidates {
			targets[i] = c.URL
		}
		return targets, nil
	}

	var targets []string
	for _, field := range strings.Split(selection, ",") {
		index, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", field)
		}
		if index < 1 || index > len(candidates) {
			return nil, fmt.Errorf("index %d out of range 1..%d", index, len(candidates))
		}
		targets = append(targets, candidates[index-1].URL)
	}
	return targets, nil
}

// printReport writes a human-readable summary to stdout.
func printReport(discovered *harvest.DiscoveryResult, checked *harvest.DuplicateCheckResult, posts []harvest.ScrapedPost) {
	fmt.Printf("Discovered %d URLs via %s (credits used: %d)\n",
		len(discovered.URLs), discovered.Method, discovered.CreditsUsed)
	fmt.Printf("New: %d  Duplicates: %d\n\n", checked.Stats.New, checked.Stats.Duplicates)

	for i, c := range checked.New {
		date := ""
		if c.PublishedDate != nil {
			date = c.PublishedDate.Format("2006-01-02")
		}
		fmt.Printf("%3d. %-10s %s\n", i+1, date, c.URL)
	}

	if len(posts) > 0 {
		fmt.Println()
		succeeded := 0
		for _, post := range posts {
			if post.Success {
				succeeded++
			} else {
				fmt.Printf("FAILED %s: %s\n", post.URL, post.Error)
			}
		}
		fmt.Printf("Scraped %d/%d posts\n", succeeded, len(posts))
	}
}

// printJSON writes the full result set as one JSON document.
func printJSON(discovered *harvest.DiscoveryResult, checked *harvest.DuplicateCheckResult, posts []harvest.ScrapedPost) {
	output := struct {
		Discovery  *harvest.DiscoveryResult      `json:"discovery"`
		Duplicates *harvest.DuplicateCheckResult `json:"duplicates"`
		Posts      []harvest.ScrapedPost         `json:"posts,omitempty"`
	}{discovered, checked, posts}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}
