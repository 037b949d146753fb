package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/storeloom/searchcore/internal/api/handlers"
	"github.com/storeloom/searchcore/internal/api/middleware"
	"github.com/storeloom/searchcore/internal/auth"
	"github.com/storeloom/searchcore/internal/cache"
	"github.com/storeloom/searchcore/internal/catalog"
	"github.com/storeloom/searchcore/internal/config"
	"github.com/storeloom/searchcore/internal/database"
	"github.com/storeloom/searchcore/internal/embedding"
	"github.com/storeloom/searchcore/internal/llm"
	"github.com/storeloom/searchcore/internal/queue"
	"github.com/storeloom/searchcore/internal/search"
	"github.com/storeloom/searchcore/internal/tenant"
)

type Router struct {
	mux   *chi.Mux
	db    *database.Pool
	redis *redis.Client
	cfg   *config.Config
	ts    *tenant.Service
	jwt   *auth.JWTMiddleware
	llmGW llm.Gateway
	jobs  *queue.Client
}

func NewRouter(db *database.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	ts := tenant.NewService(db)
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		ts:    ts,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret, ts),
		llmGW: llm.NewGateway(cfg.LLM),
		jobs:  queue.NewClient(cfg.Redis),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Retrieval engine wiring
	embedSvc := embedding.NewService(rt.llmGW, rt.cfg.LLM.EmbeddingModel)
	var embedder embedding.Embedder = embedSvc
	if rt.redis != nil {
		embedder = embedding.NewCachedEmbedder(
			embedSvc,
			cache.NewCache(rt.redis),
			rt.cfg.LLM.EmbeddingModel,
			rt.cfg.Search.EmbeddingCacheTTL,
		)
	}

	store := catalog.NewStore(rt.db)
	retriever := search.NewRetriever(
		search.NewFilterSearch(rt.db),
		search.NewSemanticSearch(rt.db, embedder, search.SemanticOptions{
			MinSimilarity: rt.cfg.Search.MinSimilarity,
		}),
		store,
		search.NewLLMRefiner(rt.llmGW, rt.cfg.Search.RefinerModel),
	)

	searchHandler := handlers.NewSearchHandler(retriever, store)
	adminHandler := handlers.NewAdminHandler(rt.jobs)

	r.Route("/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		r.Post("/search", searchHandler.Search)
		r.Get("/product-types", searchHandler.ProductTypes)
		r.Post("/admin/embeddings/backfill", adminHandler.BackfillEmbeddings)
	})

	return r
}
