// Command locosearch 是连接搜索服务的终端客户端。
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loco-platform/internal/cluster"
	"loco-platform/internal/geolocation"
	"loco-platform/internal/logging"
	"loco-platform/internal/model"
	"loco-platform/internal/search"
	"loco-platform/internal/searchapi"
	"loco-platform/internal/storage"

	"github.com/phuslu/log"
)

func main() {
	var (
		apiURL   = flag.String("api", "http://localhost:8080", "search service base URL")
		dbPath   = flag.String("db", "data/locosearch.db", "local sqlite file for search history")
		lat      = flag.Float64("lat", math.NaN(), "latitude used by 'locate'")
		lng      = flag.Float64("lng", math.NaN(), "longitude used by 'locate'")
		query    = flag.String("q", "", "run a single search and exit")
		clusters = flag.Bool("clusters", false, "print map clusters and exit")
		zoom     = flag.Float64("zoom", 10, "zoom level for -clusters")
		strategy = flag.String("strategy", "smart", "clustering strategy for -clusters")
		level    = flag.String("log", "warn", "log level")
	)
	flag.Parse()

	logger := logging.New(logging.Config{Level: *level})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := searchapi.NewClient(searchapi.Config{BaseURL: *apiURL}, &http.Client{}, logger)
	render := newTextRenderer(os.Stdout)

	if *clusters {
		if err := printClusters(ctx, client, render, *zoom, *strategy); err != nil {
			fmt.Fprintf(os.Stderr, "clusters: %v\n", err)
			os.Exit(1)
		}
		return
	}

	opts := options{dbPath: *dbPath, lat: *lat, lng: *lng, query: *query}
	if err := run(ctx, client, render, logger, opts, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "locosearch: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	dbPath   string
	lat, lng float64
	query    string
}

func run(ctx context.Context, api search.API, render *textRenderer, logger *log.Logger, opts options, in io.Reader) error {
	var history search.HistoryStore
	if opts.dbPath != "" {
		store, err := storage.NewStore(opts.dbPath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer store.Close()
		history = search.NewKVHistory(store, "")
	}

	var locator geolocation.Locator
	if !math.IsNaN(opts.lat) && !math.IsNaN(opts.lng) {
		locator = geolocation.NewCached(geolocation.NewStatic(opts.lat, opts.lng), geolocation.CacheConfig{})
	}

	ctrl, err := search.NewController(search.Options{
		API:      api,
		Renderer: render,
		History:  history,
		Locator:  locator,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	if opts.query != "" {
		return ctrl.SearchTrending(ctx, opts.query)
	}

	render.printf("%s\n", helpText)
	_ = ctrl.LoadTrending(ctx)
	return repl(ctx, ctrl, render, in)
}

type jobLister interface {
	Jobs(ctx context.Context, page, limit int) ([]model.Job, error)
}

const (
	clusterPageSize = 100
	clusterMaxPages = 20
)

// printClusters 拉取全部职位后在本地聚合并输出。
func printClusters(ctx context.Context, api jobLister, render *textRenderer, zoom float64, strategy string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	var jobs []model.Job
	for page := 1; page <= clusterMaxPages; page++ {
		batch, err := api.Jobs(ctx, page, clusterPageSize)
		if err != nil {
			return err
		}
		jobs = append(jobs, batch...)
		if len(batch) < clusterPageSize {
			break
		}
	}

	eng := cluster.NewEngine(cluster.DefaultConfig(), zoom, nil)
	if _, err := eng.SetStrategy(strategy); err != nil {
		return err
	}
	render.printClusters(eng.SetJobs(jobs))
	return nil
}
