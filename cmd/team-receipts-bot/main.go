package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"team-receipts-bot/internal/bot"
	"team-receipts-bot/internal/extraction"
	"team-receipts-bot/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("team-receipts-bot")
	var (
		token          = fs.StringLong("token", "", "Telegram bot token (or set TEAM_RECEIPTS_TOKEN env var)")
		dbPath         = fs.StringLong("db", "team-receipts.db", "Database file path")
		uploadDir      = fs.StringLong("upload-dir", "./uploads", "Directory for stored receipt files")
		maxFileSize    = fs.IntLong("max-file-size", receipt.DefaultMaxFileSize, "Upload size ceiling in bytes")
		ocrType        = fs.StringLong("ocr", "tesseract", "OCR backend: 'tesseract', 'gemini' or 'ollama'")
		tesseractBin   = fs.StringLong("tesseract-bin", "tesseract", "Tesseract binary name or path")
		tesseractLang  = fs.StringLong("tesseract-lang", extraction.DefaultTesseractLang, "Tesseract language hint")
		tessdataDir    = fs.StringLong("tessdata-dir", "", "Tesseract tessdata directory (optional)")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		extractTimeout = fs.DurationLong("extract-timeout", extraction.DefaultTimeout, "Per-document extraction timeout")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("TEAM_RECEIPTS"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *token == "" {
		slog.Error("Telegram token is required. Set --token flag or TEAM_RECEIPTS_TOKEN environment variable")
		os.Exit(1)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize OCR backend
	var backend extraction.Backend
	switch *ocrType {
	case "tesseract":
		slog.Info("Initializing tesseract OCR...", "bin", *tesseractBin, "lang", *tesseractLang)
		backend = extraction.NewTesseract(*tesseractBin, *tesseractLang, *tessdataDir)
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini OCR...", "model", *geminiModel)
		backend, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama OCR...", "url", *ollamaURL, "model", *ollamaModel)
		backend, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid OCR backend", "type", *ocrType, "valid", "tesseract, gemini or ollama")
		os.Exit(1)
	}

	extractor := extraction.NewExtractor(backend, *extractTimeout)
	defer extractor.Close()

	// Initialize blob storage
	slog.Info("Initializing storage...", "dir", *uploadDir)
	store, err := receipt.NewLocalStorage(*uploadDir)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	validator := receipt.NewValidator(int64(*maxFileSize))
	svc := receipt.NewService(db, store, extractor, validator)

	// Connect to Telegram
	api, err := tgbotapi.NewBotAPI(*token)
	if err != nil {
		slog.Error("Failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	handler := bot.NewHandler(api, svc, int64(*maxFileSize))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("Shutting down...")
		cancel()
	}()

	slog.Info("Bot started", "username", api.Self.UserName, "version", version)
	handler.Run(ctx)

	// Give in-flight handler calls a moment to finish their replies
	time.Sleep(100 * time.Millisecond)
}
