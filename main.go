package main

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/mkardel/photoscope/ai"
	"github.com/mkardel/photoscope/config"
	"github.com/mkardel/photoscope/coordinator"
	"github.com/mkardel/photoscope/database"
	"github.com/mkardel/photoscope/handlers"
	"github.com/mkardel/photoscope/loader"
	"github.com/mkardel/photoscope/media"
	"github.com/mkardel/photoscope/realtime"
	"github.com/mkardel/photoscope/repository"
	"github.com/mkardel/photoscope/search"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	imageRepo := repository.NewImageRepository(db)
	faceRepo := repository.NewFaceRepository(db)

	modelLoader := loader.New(loader.Factories{
		Captioner: func() (ai.Captioner, error) {
			return ai.NewOpenAICaptioner(cfg.OpenAIAPIKey, cfg.CaptionModel)
		},
		Detector: func() (media.FaceDetector, error) {
			return media.NewDNNFaceDetector(cfg.FaceDNNNetConfigPath, cfg.FaceDNNNetModelPath)
		},
		Embedder: func() (ai.Embedder, error) {
			return ai.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		},
	})
	modelLoader.Start()
	defer modelLoader.Close()

	engine := search.NewEngine(modelLoader, cfg.SearchFloor, cfg.SearchMaxHits)

	// warm the index from whatever previous runs persisted; stored
	// embeddings don't depend on any provider being loaded
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying sql.DB: %v", err)
	}
	stored, err := database.AllEmbeddings(sqlDB)
	if err != nil {
		log.Printf("Warning: failed to load stored embeddings: %v", err)
	} else {
		engine.Rebuild(stored)
	}

	hub := realtime.NewHub()
	go hub.Run()

	coord := coordinator.New(cfg, modelLoader, engine, imageRepo, faceRepo, hub)
	defer coord.Stop()

	log.Printf("Library root: %s", cfg.LibraryRoot)
	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Ingest workers: %d (queue %d)", cfg.NumIngestWorkers, cfg.IngestQueueSize)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	libraryHandler := &handlers.LibraryHandler{Coord: coord}
	faceHandler := &handlers.FaceHandler{Coord: coord}

	r.Route("/api", func(r chi.Router) {
		r.Route("/library", func(r chi.Router) {
			r.Post("/scan", libraryHandler.ScanFolder)
			r.Get("/", libraryHandler.ListImages)
		})
		r.Get("/search", libraryHandler.Search)
		r.Get("/status", libraryHandler.Status)

		r.Route("/faces", func(r chi.Router) {
			r.Get("/", faceHandler.ListFacesByImage)
			r.Post("/tag", faceHandler.TagFace)
			r.Post("/at", faceHandler.FaceAt)
		})
	})

	r.Get("/ws", hub.ServeWS)

	addr := ":8080"
	log.Printf("Starting server on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("FATAL: Server failed: %v", err)
	}
}
