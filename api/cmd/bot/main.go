package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"homework-analyzer/api/internal/analysis"
	"homework-analyzer/api/internal/config"
	"homework-analyzer/api/internal/llm"
	"homework-analyzer/api/internal/llm/gemini"
	"homework-analyzer/api/internal/llm/openai"
	"homework-analyzer/api/internal/ocr"
	"homework-analyzer/api/internal/ocr/yandex"
	"homework-analyzer/api/internal/pipeline"
	"homework-analyzer/api/internal/segment"
	"homework-analyzer/api/internal/store"
	"homework-analyzer/api/internal/util"
)

// bot wires the Telegram surface to the analysis pipeline: a photo comes
// in, OCR and extraction run, a structured summary goes back and the
// result lands in the archive.
type botApp struct {
	bot        *tgbotapi.BotAPI
	tgToken    string
	recognizer ocr.Recognizer
	analyzer   *pipeline.Analyzer
	manager    *llm.Manager
	engines    *llm.Engines
	repo       *store.ArchiveRepo
	httpc      *http.Client
}

func main() {
	cfg := config.Load()

	tgToken := config.MustEnv("TELEGRAM_BOT_TOKEN")
	webhookURL := config.MustEnv("WEBHOOK_URL")
	ycOAuth := config.MustEnv("YC_OAUTH_TOKEN")
	ycFolder := config.MustEnv("YC_FOLDER_ID")

	bot, err := tgbotapi.NewBotAPI(tgToken)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false

	engines := &llm.Engines{
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		OpenAI: openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel),
	}
	app := &botApp{
		bot:        bot,
		tgToken:    tgToken,
		recognizer: yandex.New(ycOAuth, ycFolder),
		analyzer: pipeline.New(engines, pipeline.Config{
			Segmentation: segment.Config{
				GapThreshold:     cfg.GapThreshold,
				MinSegmentHeight: cfg.MinSegmentHeight,
			},
			Parallelism: cfg.Parallelism,
			CropPadding: cfg.CropPadding,
		}),
		manager: llm.NewManager(engines.Gemini),
		engines: engines,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("sql.Open: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(1 * time.Hour)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("db.Ping: %v", err)
		}
		cancel()
		app.repo = store.NewArchiveRepo(db)
	}

	path := "/webhook/" + util.ShortHash(tgToken)
	public := strings.TrimRight(webhookURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	updates := bot.ListenForWebhook(path)

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	go func() {
		for upd := range updates {
			app.handleUpdate(upd)
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	log.Printf("listening on %s; webhook=%s", addr, public)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func (a *botApp) handleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	cid := upd.Message.Chat.ID

	if upd.Message.IsCommand() {
		switch upd.Message.Command() {
		case "start":
			a.send(cid, "Send a photo of a homework page. I will split it into lessons and exercises. Commands: /engine, /health")
		case "engine":
			a.setEngine(cid, strings.TrimSpace(upd.Message.CommandArguments()))
		case "health":
			a.send(cid, "ok: "+a.manager.Get(cid).Name())
		default:
			a.send(cid, "Unknown command")
		}
		return
	}

	if len(upd.Message.Photo) > 0 {
		a.handlePhoto(cid, upd.Message.Photo)
	}
}

func (a *botApp) setEngine(cid int64, name string) {
	eng, err := a.engines.GetEngine(name)
	if err != nil {
		a.send(cid, "Usage: /engine gemini|gpt")
		return
	}
	a.manager.Set(cid, eng)
	a.send(cid, "Engine set to "+eng.Name())
}

func (a *botApp) handlePhoto(cid int64, photos []tgbotapi.PhotoSize) {
	a.send(cid, "Got the photo, analyzing…")

	ph := photos[len(photos)-1] // largest size
	tf, err := a.bot.GetFile(tgbotapi.FileConfig{FileID: ph.FileID})
	if err != nil {
		a.send(cid, "Could not fetch the file: "+err.Error())
		return
	}
	img, err := a.download(fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", a.tgToken, tf.FilePath))
	if err != nil {
		a.send(cid, "Could not download the photo: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	rec, err := a.recognizer.Recognize(ctx, img, ocr.Options{Langs: []string{"ru", "en"}})
	if err != nil {
		a.send(cid, "OCR error: "+err.Error())
		return
	}

	eng := a.manager.Get(cid)
	res, err := a.analyzer.AnalyzePage(ctx, pipeline.PageInput{
		Image:    img,
		MIME:     util.SniffMimeHTTP(img),
		FullText: rec.FullText,
		Blocks:   rec.Blocks,
		LLMName:  eng.Name(),
		Progress: func(cur, total int) {
			log.Printf("bot: chat %d segment %d/%d", cid, cur, total)
		},
	})
	if err != nil {
		a.send(cid, "Analysis error: "+err.Error())
		return
	}

	if a.repo != nil {
		if err := a.repo.UpsertPage(ctx, strconv.FormatInt(cid, 10), 1, res, eng.Name(), util.SHA256Hex(img)); err != nil {
			log.Printf("bot: archive upsert failed: %v", err)
		}
	}

	a.send(cid, formatResult(res))
}

func formatResult(res analysis.Result) string {
	if res.IsEmpty() {
		return "Nothing recognizable on this page."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Subject: %s\n", res.Subject)
	if len(res.Lessons) > 0 {
		fmt.Fprintf(&sb, "\nLessons (%d):\n", len(res.Lessons))
		for _, l := range res.Lessons {
			fmt.Fprintf(&sb, "• %s\n", firstLine(l.Topic, l.Content))
		}
	}
	if len(res.Exercises) > 0 {
		fmt.Fprintf(&sb, "\nExercises (%d):\n", len(res.Exercises))
		for _, e := range res.Exercises {
			fmt.Fprintf(&sb, "%s. %s\n", e.Number, firstLine(e.Topic, e.Content))
		}
	}
	out := sb.String()
	if len(out) > 3900 {
		out = out[:3900] + "…"
	}
	return out
}

func firstLine(topic, content string) string {
	s := topic
	if s == "" {
		s = content
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "…"
	}
	return s
}

func (a *botApp) send(chatID int64, text string) {
	_, _ = a.bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (a *botApp) download(url string) ([]byte, error) {
	resp, err := a.httpc.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
