package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/StarecMudrec/CardswoodWebsite/config"
	"github.com/StarecMudrec/CardswoodWebsite/internal/cache"
	"github.com/StarecMudrec/CardswoodWebsite/internal/db"
	"github.com/StarecMudrec/CardswoodWebsite/internal/gamestore"
	"github.com/StarecMudrec/CardswoodWebsite/internal/handlers"
	"github.com/StarecMudrec/CardswoodWebsite/internal/middleware"
	"github.com/StarecMudrec/CardswoodWebsite/internal/notify"
	"github.com/StarecMudrec/CardswoodWebsite/internal/payanyway"
	"github.com/StarecMudrec/CardswoodWebsite/internal/rewards"
	"github.com/StarecMudrec/CardswoodWebsite/logging"
)

func main() {
	logger := logging.GetSugaredLogger()
	defer logger.Sync()

	cfg := config.GetConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}

	database, err := db.NewManager(cfg)
	if err != nil {
		logger.Fatal(err)
	}
	defer database.Close()

	var catalogCache cache.Cache
	if cfg.RedisAddr != "" {
		catalogCache = cache.NewRedisCache(cfg.RedisAddr, "cardswood")
	}

	game, err := gamestore.NewStore(cfg.GameDatabaseURI, catalogCache, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer game.Close()

	signer := payanyway.NewSigner(cfg.MerchantID, cfg.IntegrityCode, cfg.TestMode)
	granter := rewards.NewGranter(game, rewards.DefaultEffects(), rewards.DefaultPacks(), logger)
	dispatcher := notify.NewDispatcher(cfg.NotifyURL, cfg.NotifySecret, cfg.NotifyTimeout, logger)

	h := handlers.Handler{
		Config:     cfg,
		Database:   database,
		Signer:     signer,
		Granter:    granter,
		Dispatcher: dispatcher,
		Logger:     logger,
		Prices:     defaultPriceList(),
	}

	r := initRouter(h, cfg)

	err = http.ListenAndServe(cfg.RunAddress, r)
	logger.Fatalw("failed to start server", "error", err)
}

func initRouter(h handlers.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()
	r.Post(`/api/orders`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.CreateOrder),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				middleware.ValidateAuth(cfg.AuthSecretKey),
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/api/orders`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.OrdersGet),
				h.Logger,
				middleware.WriteWithCompression,
				middleware.ValidateAuth(cfg.AuthSecretKey),
			).ServeHTTP(w, r)
		},
	)
	// Pay URL: no auth middleware, PayAnyWay authenticates with
	// MNT_SIGNATURE; the gateway may use either method
	r.Post(`/api/payanyway/callback`, h.PaymentCallback)
	r.Get(`/api/payanyway/callback`, h.PaymentCallback)
	return r
}

func defaultPriceList() map[string]handlers.PriceEntry {
	return map[string]handlers.PriceEntry{
		"premium-month":   {Name: "Премиум на месяц", Price: decimal.NewFromInt(299)},
		"pack-standard":   {Name: "Обычный набор карт", Price: decimal.NewFromInt(149)},
		"pack-collector":  {Name: "Коллекционный набор", Price: decimal.NewFromInt(499)},
		"card-woodcutter": {Name: "Карта «Дровосек»", Price: decimal.NewFromInt(199)},
		"points-1000":     {Name: "1000 очков", Price: decimal.NewFromInt(99)},
	}
}
