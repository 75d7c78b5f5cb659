// Package main runs the token spam detection service:
// - Feed (continuous): WebSocket transfer/approval events for watched tokens
// - Detection (scheduled): tick loop scanning the watch list, releasing verdicts
// - Admin API: watch-list admission and removal over HTTP
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"token-spam-detector/internal/analysis"
	"token-spam-detector/internal/detector"
	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/feed"
	"token-spam-detector/internal/identify"
	"token-spam-detector/internal/modules"
	"token-spam-detector/internal/observability"
	"token-spam-detector/internal/provider"
	"token-spam-detector/internal/storage"
	chstore "token-spam-detector/internal/storage/clickhouse"
	"token-spam-detector/internal/storage/memory"
	"token-spam-detector/internal/storage/migrations"
	pgstore "token-spam-detector/internal/storage/postgres"
	"token-spam-detector/internal/tokenlist"
)

// Server wires the detector, the event feed, and the stores together.
type Server struct {
	detector *detector.Detector
	feed     *feed.Client
	stores   *allStores
	logger   *logrus.Entry

	latestBlock atomic.Uint64

	mu           sync.Mutex
	started      time.Time
	lastTick     time.Time
	ticks        int
	released     int
	spamVerdicts int
}

// allStores holds the storage implementations backing the service.
type allStores struct {
	tokenStore     storage.TokenStore
	verdictStore   storage.VerdictStore
	tokenListStore storage.TokenListStore
	verdictArchive storage.VerdictArchive // nil when ClickHouse is disabled
}

func main() {
	loadEnvFile()

	rpcEndpoints := flag.String("rpc-endpoints", os.Getenv("RPC_ENDPOINTS"), "Comma-separated EVM RPC HTTP endpoints")
	feedEndpoint := flag.String("feed-endpoint", os.Getenv("FEED_ENDPOINT"), "WebSocket event feed endpoint")
	tokenListURL := flag.String("token-list-url", os.Getenv("TOKEN_LIST_URL"), "Reference token list URL")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional verdict archive)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	tickInterval := flag.Duration("tick-interval", 1*time.Minute, "Analysis tick interval")
	quietTicks := flag.Int("quiet-ticks", detector.DefaultQuietTicks, "Consecutive unchanged ticks before a token is finalized")
	maxTokenAge := flag.Int64("max-token-age", detector.DefaultMaxTokenAge, "Token age in seconds after which it is finalized")
	spamModules := flag.String("spam-modules", "", "Comma-separated module keys that count toward spam verdicts (empty: all)")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for admin API, health and metrics")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("invalid --log-level: %v", err)
	}
	logrus.SetLevel(level)
	logger := logrus.WithField("component", "main")

	if *rpcEndpoints == "" {
		logger.Fatal("--rpc-endpoints is required")
	}
	if *feedEndpoint == "" {
		logger.Fatal("--feed-endpoint is required")
	}
	if *tokenListURL == "" {
		logger.Fatal("--token-list-url is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	pool, poolCleanup, err := createProviderPool(ctx, *rpcEndpoints)
	if err != nil {
		logger.Fatalf("create provider pool: %v", err)
	}
	defer poolCleanup()

	lists := tokenlist.New(*tokenListURL, stores.tokenListStore)

	registry := analysis.NewRegistry()
	registry.Register(modules.NewAirdrop(modules.AirdropConfig{}), domain.StandardERC20)
	registry.Register(modules.NewLowActivity(modules.LowActivityConfig{}), domain.StandardERC20)
	registry.Register(modules.NewHoneypot(modules.HoneypotConfig{}), domain.StandardERC20)
	registry.Register(modules.NewImpersonation(lists),
		domain.StandardERC20, domain.StandardERC721, domain.StandardERC1155)

	det, err := detector.New(registry, pool, stores.verdictStore, detector.Config{
		QuietTicks:  *quietTicks,
		MaxTokenAge: *maxTokenAge,
		SpamKeys:    splitList(*spamModules),
	})
	if err != nil {
		logger.Fatalf("create detector: %v", err)
	}

	feedClient, err := feed.Dial(ctx, *feedEndpoint, nil)
	if err != nil {
		logger.Fatalf("connect event feed: %v", err)
	}
	defer feedClient.Close()

	server := &Server{
		detector: det,
		feed:     feedClient,
		stores:   stores,
		logger:   logger,
		started:  time.Now(),
	}

	if err := server.restoreWatchList(ctx); err != nil {
		logger.Fatalf("restore watch list: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	go server.startHTTPServer(*httpAddr)
	go server.runEventPump(ctx)

	logger.Infof("detector started, watching %d tokens, tick interval %v", det.Watching(), *tickInterval)
	server.runTickLoop(ctx, *tickInterval)

	logger.Info("shutdown complete")
}

// createStores builds the storage layer and runs migrations for the durable
// backends. The returned cleanup closes every opened connection.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	stores := &allStores{}
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if useMemory {
		stores.tokenStore = memory.NewTokenStore()
		stores.verdictStore = memory.NewVerdictStore()
		stores.tokenListStore = memory.NewTokenListStore()
	} else {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}

		stores.tokenStore = pgstore.NewTokenStore(pool)
		stores.verdictStore = pgstore.NewVerdictStore(pool)
		stores.tokenListStore = pgstore.NewTokenListStore(pool)
	}

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		cleanups = append(cleanups, func() { conn.Close() })
		stores.verdictArchive = chstore.NewVerdictArchiveStore(conn)
	}

	return stores, cleanup, nil
}

// createProviderPool dials every RPC endpoint and wraps them in a rotating
// pool with the default backoff policy.
func createProviderPool(ctx context.Context, endpoints string) (*provider.RotatingPool, func(), error) {
	var providers []provider.DataProvider
	var closers []func()

	for _, endpoint := range splitList(endpoints) {
		p, err := provider.Dial(ctx, endpoint)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, fmt.Errorf("dial %s: %w", endpoint, err)
		}
		providers = append(providers, p)
		closers = append(closers, p.Close)
	}
	if len(providers) == 0 {
		return nil, nil, fmt.Errorf("no RPC endpoints configured")
	}

	pool := provider.NewRotatingPool(providers, provider.DefaultPoolConfig(), logrus.StandardLogger())
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return pool, cleanup, nil
}

// restoreWatchList re-admits every persisted token and resubscribes the feed.
func (s *Server) restoreWatchList(ctx context.Context) error {
	tokens, err := s.stores.tokenStore.GetAll(ctx)
	if err != nil {
		return err
	}

	addresses := make([]common.Address, 0, len(tokens))
	for _, t := range tokens {
		s.detector.AddToken(t.Standard, *t)
		addresses = append(addresses, t.Address)
	}
	if len(addresses) > 0 {
		if err := s.feed.Subscribe(addresses...); err != nil {
			return fmt.Errorf("subscribe feed: %w", err)
		}
	}

	observability.UpdateTokensWatched(s.detector.Watching())
	s.logger.Infof("restored %d tokens from storage", len(tokens))
	return nil
}

// runEventPump forwards decoded feed events into the detector until the feed
// channel closes or the context is cancelled.
func (s *Server) runEventPump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.feed.Events():
			if !ok {
				return
			}
			observability.RecordEventReceived(string(ev.Type))
			if ev.BlockNumber > s.latestBlock.Load() {
				s.latestBlock.Store(ev.BlockNumber)
			}
			s.detector.HandleTxEvent(ev)
		}
	}
}

// runTickLoop drives the analysis on a fixed interval until cancellation.
func (s *Server) runTickLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one full analysis pass: dispatch, join, release, persist.
func (s *Server) tick(ctx context.Context) {
	start := time.Now()
	s.detector.Tick(start.Unix(), s.latestBlock.Load())
	s.detector.Wait()

	analyses := s.detector.ReleaseAnalyses()
	records := make([]*domain.VerdictRecord, 0, len(analyses))
	spam := 0

	for _, a := range analyses {
		verdict := a.Interpret()
		observability.RecordVerdict(verdict.IsSpam, verdict.IsFinalized)
		if verdict.IsSpam {
			spam++
		}

		rec := a.Record()
		records = append(records, rec)
		if err := s.stores.verdictStore.Append(ctx, rec); err != nil {
			s.logger.WithError(err).WithField("token", rec.Address.Hex()).Error("persist verdict")
		}

		if verdict.IsFinalized {
			s.dropToken(ctx, a.Token())
			s.logger.WithFields(logrus.Fields{
				"token":       rec.Address.Hex(),
				"is_spam":     verdict.IsSpam,
				"detected_by": verdict.DetectedBy,
			}).Info("token finalized")
		}
	}

	if s.stores.verdictArchive != nil && len(records) > 0 {
		if err := s.stores.verdictArchive.InsertBulk(ctx, records); err != nil {
			s.logger.WithError(err).Error("archive verdicts")
		}
	}

	observability.RecordTick(time.Since(start).Seconds())
	observability.UpdateTokensWatched(s.detector.Watching())

	s.mu.Lock()
	s.ticks++
	s.released += len(analyses)
	s.spamVerdicts += spam
	s.lastTick = time.Now()
	s.mu.Unlock()
}

// dropToken removes a finalized or deleted token from the durable registry
// and the feed subscription. The detector entry is already gone.
func (s *Server) dropToken(ctx context.Context, token domain.TokenContract) {
	if err := s.stores.tokenStore.Delete(ctx, token.ChainID, token.Address); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.WithError(err).WithField("token", token.Address.Hex()).Error("delete token row")
	}
	if err := s.feed.Unsubscribe(token.Address); err != nil {
		s.logger.WithError(err).WithField("token", token.Address.Hex()).Warn("unsubscribe feed")
	}
}

// startHTTPServer serves the admin API, health check and Prometheus metrics.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/tokens", s.handleTokens)

	s.logger.Infof("HTTP server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.WithError(err).Error("HTTP server")
	}
}

// admitRequest is the JSON body for POST /tokens.
type admitRequest struct {
	ChainID     uint64 `json:"chain_id"`
	Address     string `json:"address"`
	Deployer    string `json:"deployer"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
}

// handleTokens admits (POST) or removes (DELETE) a watched token.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAdmit(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if !common.IsHexAddress(req.Address) {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}

	token := domain.TokenContract{
		ChainID:     req.ChainID,
		Address:     common.HexToAddress(req.Address),
		Deployer:    common.HexToAddress(req.Deployer),
		BlockNumber: req.BlockNumber,
		Timestamp:   req.Timestamp,
	}

	std, err := s.detector.Admit(r.Context(), token)
	if err != nil {
		observability.RecordTokenRejected()
		if errors.Is(err, identify.ErrUnknownStandard) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.logger.WithError(err).WithField("token", token.Address.Hex()).Error("admit token")
		http.Error(w, "identification failed", http.StatusBadGateway)
		return
	}
	token.Standard = std

	if err := s.stores.tokenStore.Insert(r.Context(), &token); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		s.logger.WithError(err).WithField("token", token.Address.Hex()).Error("persist token")
	}
	if err := s.feed.Subscribe(token.Address); err != nil {
		s.logger.WithError(err).WithField("token", token.Address.Hex()).Warn("subscribe feed")
	}

	observability.RecordTokenAdmitted()
	observability.UpdateTokensWatched(s.detector.Watching())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"standard": std.String()})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if !common.IsHexAddress(address) {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return
	}
	var chainID uint64
	if _, err := fmt.Sscanf(r.URL.Query().Get("chain_id"), "%d", &chainID); err != nil {
		http.Error(w, "invalid chain_id", http.StatusBadRequest)
		return
	}

	token := domain.TokenContract{ChainID: chainID, Address: common.HexToAddress(address)}
	s.detector.DeleteToken(chainID, token.Address)
	s.dropToken(r.Context(), token)
	observability.UpdateTokensWatched(s.detector.Watching())

	w.WriteHeader(http.StatusNoContent)
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	Watching     int       `json:"watching"`
	Ticks        int       `json:"ticks"`
	LastTick     time.Time `json:"last_tick,omitempty"`
	Released     int       `json:"released"`
	SpamVerdicts int       `json:"spam_verdicts"`
	LatestBlock  uint64    `json:"latest_block"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(s.started).String(),
		Watching:     s.detector.Watching(),
		Ticks:        s.ticks,
		LastTick:     s.lastTick,
		Released:     s.released,
		SpamVerdicts: s.spamVerdicts,
		LatestBlock:  s.latestBlock.Load(),
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file if present.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
