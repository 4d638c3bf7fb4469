// Command mktcrawl crawls marketplace search results under an externally
// supplied authenticated session and emits the collected listings as JSON.
//
// The compact listing array always goes to stdout; progress and the terminal
// status go to stderr; the process exit code encodes the terminal status so
// callers can tell "no results" from "session expired" without parsing text.
package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"github.com/kvasirlabs/mktcrawl/internal/config"
	"github.com/kvasirlabs/mktcrawl/internal/crawler"
	"github.com/kvasirlabs/mktcrawl/internal/domain/model"
	"github.com/kvasirlabs/mktcrawl/internal/infra/images"
	"github.com/kvasirlabs/mktcrawl/internal/infra/persistence/es"
	"github.com/kvasirlabs/mktcrawl/internal/infra/session"
	"github.com/kvasirlabs/mktcrawl/internal/output"
	"github.com/kvasirlabs/mktcrawl/internal/service/market"
	"github.com/kvasirlabs/mktcrawl/param"
)

//go:embed appconfig/appconfig.json
var appConfig []byte

// Exit codes are part of the interface: scripts branch on them.
const (
	exitOK             = 0
	exitSetup          = 1
	exitSessionExpired = 2
	exitAborted        = 3
	exitInvalidCookies = 4
)

// queryList makes --query repeatable.
type queryList []string

func (q *queryList) String() string { return strings.Join(*q, ",") }

func (q *queryList) Set(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("query must not be empty")
	}
	*q = append(*q, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var queries queryList
	flag.Var(&queries, "query", "search query (repeatable; one crawl per query)")
	var (
		maxItems    = flag.Int("max-items", param.DefaultMaxItems, "maximum listings per query")
		cookiesPath = flag.String("cookies", "", "path to session cookies JSON exported from a logged-in browser")
		headless    = flag.Bool("headless", true, "run the browser headless")
		slowMoMs    = flag.Int("slow-mo-ms", 0, "slow motion delay per browser action, for debugging")
		scrollDelay = flag.Int("scroll-delay-ms", int(param.DefaultScrollDelay/time.Millisecond), "pacing delay between scroll and extraction")
		idleLimit   = flag.Int("idle-limit", param.DefaultIdleLimit, "consecutive no-growth rounds before stopping")
		locations   = flag.String("location-contains", "", "comma-separated substrings; keep only listings whose location matches one")
		outJSON     = flag.String("out-json", "", "mirror results to this JSON file")
		outCSV      = flag.String("out-csv", "", "also write results as CSV to this file")
		saveCookies = flag.String("save-cookies", "", "write refreshed session cookies back to this file after a successful crawl")
		saveImages  = flag.String("save-images", "", "download listing thumbnails into this directory")
		esIndex     = flag.String("es-index", "", "bulk-index results into this Elasticsearch index")
		driver      = flag.String("driver", string(market.DriverChromedp), "browser driver: chromedp or rod")
		parallel    = flag.Int("parallel", 2, "maximum concurrent crawls when multiple queries are given")
		verbose     = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	level := log.InfoLevel
	if *verbose {
		level = log.DebugLevel
	}
	log.DefaultLogger = log.Logger{
		Level:  level,
		Writer: &log.ConsoleWriter{ColorOutput: true, Writer: os.Stderr},
	}

	if len(queries) == 0 {
		fmt.Fprintln(os.Stderr, "at least one --query is required")
		flag.Usage()
		return exitSetup
	}

	cfg, err := config.ParseConfig(appConfig)
	if err != nil {
		log.Error().Err(err).Msg("parse app config")
		return exitSetup
	}

	var cookies []session.Cookie
	if *cookiesPath != "" {
		cookies, err = session.Load(*cookiesPath)
		if err != nil {
			if errors.Is(err, session.ErrInvalidCookieFormat) {
				log.Error().Err(err).Str("path", *cookiesPath).Msg("invalid cookie format")
				return exitInvalidCookies
			}
			log.Error().Err(err).Str("path", *cookiesPath).Msg("load cookies")
			return exitSetup
		}
		log.Info().Int("cookies", len(cookies)).Str("path", *cookiesPath).Msg("session cookies loaded")
	}

	svc, err := market.InitService(cfg, market.Driver(*driver), *saveCookies)
	if err != nil {
		log.Error().Err(err).Msg("init crawl service")
		return exitSetup
	}

	var needles []string
	for _, n := range strings.Split(*locations, ",") {
		if t := strings.TrimSpace(n); t != "" {
			needles = append(needles, t)
		}
	}

	reqs := make([]*param.Crawl, len(queries))
	for i, q := range queries {
		reqs[i] = &param.Crawl{
			Query:            q,
			MaxItems:         *maxItems,
			ScrollDelay:      time.Duration(*scrollDelay) * time.Millisecond,
			IdleLimit:        *idleLimit,
			Headless:         *headless,
			SlowMo:           time.Duration(*slowMoMs) * time.Millisecond,
			LocationContains: needles,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := svc.CrawlAll(ctx, reqs, cookies, *parallel)

	all := make([]model.Listing, 0)
	code := exitOK
	for i, res := range results {
		ev := log.Info().
			Str("query", queries[i]).
			Str("status", res.Status.String()).
			Int("listings", len(res.Listings))
		if res.Err != nil {
			ev = ev.Err(res.Err)
		}
		ev.Msg("crawl finished")

		all = append(all, res.Listings...)
		switch res.Status {
		case crawler.StatusSessionExpired:
			if code == exitOK {
				code = exitSessionExpired
			}
		case crawler.StatusAborted:
			code = exitAborted
		}
	}

	if err := output.WriteJSON(os.Stdout, all); err != nil {
		log.Error().Err(err).Msg("write stdout")
		return exitSetup
	}
	if *outJSON != "" {
		if err := output.WriteJSONFile(*outJSON, all); err != nil {
			log.Error().Err(err).Str("path", *outJSON).Msg("write json file")
			return exitSetup
		}
	}
	if *outCSV != "" {
		if err := output.WriteCSVFile(*outCSV, all); err != nil {
			log.Error().Err(err).Str("path", *outCSV).Msg("write csv file")
			return exitSetup
		}
	}

	if *saveImages != "" && len(all) > 0 {
		fetcher, err := images.InitFetcher(cfg, *saveImages, "https://www.facebook.com", cookies)
		if err != nil {
			log.Error().Err(err).Msg("init thumbnail fetcher")
		} else {
			fetcher.FetchAll(all)
		}
	}

	index := *esIndex
	if index == "" {
		index = cfg.Elasticsearch.Index
	}
	if index != "" && len(all) > 0 {
		if err := indexListings(ctx, cfg, index, all); err != nil {
			log.Error().Err(err).Str("index", index).Msg("elasticsearch sink")
		}
	}

	return code
}

func indexListings(ctx context.Context, cfg *config.Config, index string, listings []model.Listing) error {
	client, err := es.InitTypedEsClient[model.Listing](cfg, index)
	if err != nil {
		return err
	}
	if err := client.CreateIndexWithMapping(ctx); err != nil {
		return err
	}
	return client.BulkIndexDocsWithID(ctx, listings)
}
