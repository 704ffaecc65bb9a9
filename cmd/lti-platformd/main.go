package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openlms/lticore/internal/config"
	"github.com/openlms/lticore/internal/httpapi"
	"github.com/openlms/lticore/internal/launchcache"
	"github.com/openlms/lticore/internal/registry"
	"github.com/openlms/lticore/pkg/lti1p3"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	store, err := registry.Open(ctx, registry.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	defer store.Close()

	var cache lti1p3.LaunchDataStore
	switch cfg.LaunchCacheDriver {
	case "bolt":
		if err := os.MkdirAll(filepath.Dir(cfg.LaunchCachePath), 0o755); err != nil {
			log.Fatalf("launch cache: %v", err)
		}
		b, err := launchcache.OpenBolt(cfg.LaunchCachePath)
		if err != nil {
			log.Fatalf("launch cache: %v", err)
		}
		defer b.Close()
		cache = b
	default:
		cache = launchcache.NewMemory()
	}

	api := &httpapi.Server{
		Registry:      store,
		Cache:         cache,
		Scores:        store,
		Content:       store,
		Issuer:        cfg.Issuer,
		PublicURL:     cfg.PublicURL,
		PrivateKeyPEM: cfg.PrivateKeyPEM,
		KeyID:         cfg.KeyID,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/", api.Routes())

	s := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("lti-platformd listening on %s", cfg.HTTPAddr)
	log.Fatal(s.ListenAndServe())
}
