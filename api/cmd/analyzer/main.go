package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"homework-analyzer/api/internal/config"
	"homework-analyzer/api/internal/handle"
	"homework-analyzer/api/internal/llm"
	"homework-analyzer/api/internal/llm/gemini"
	"homework-analyzer/api/internal/llm/openai"
	"homework-analyzer/api/internal/ocr"
	"homework-analyzer/api/internal/ocr/yandex"
	"homework-analyzer/api/internal/pipeline"
	"homework-analyzer/api/internal/segment"
	"homework-analyzer/api/internal/store"
)

func main() {
	cfg := config.Load()

	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	} else if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "8000"
	}

	engines := &llm.Engines{
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		OpenAI: openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel),
	}

	analyzer := pipeline.New(engines, pipeline.Config{
		Segmentation: segment.Config{
			GapThreshold:     cfg.GapThreshold,
			MinSegmentHeight: cfg.MinSegmentHeight,
		},
		Parallelism: cfg.Parallelism,
		CropPadding: cfg.CropPadding,
	})

	var recognizer ocr.Recognizer
	if cfg.YCOAuthToken != "" && cfg.YCFolderID != "" {
		recognizer = yandex.New(cfg.YCOAuthToken, cfg.YCFolderID)
	} else {
		log.Print("YC_OAUTH_TOKEN/YC_FOLDER_ID not set; /v1/recognize disabled, /v1/analyze requires ocrBlocks")
	}

	var repo *store.ArchiveRepo
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("sql.Open: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(1 * time.Hour)
		{
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				log.Fatalf("db.Ping: %v", err)
			}
		}
		repo = store.NewArchiveRepo(db)
		log.Print("archive persistence enabled")
	}

	h := handle.New(analyzer, recognizer, repo)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/analyze", h.Analyze)
	mux.HandleFunc("/v1/recognize", h.Recognize)
	mux.HandleFunc("/v1/pages", h.Pages)

	addr := ":" + cfg.Port
	log.Printf("homework-analyzer listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
