package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"threadmail/config"
	"threadmail/ingest"
	"threadmail/models"
	"threadmail/storage"
	"threadmail/threading"
	"threadmail/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	utils.Log.SetLevel(utils.ParseLevel(cfg.Log.Level))

	// Initialize i18n system for the analysis report
	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	records, err := loadRecords(cfg)
	if err != nil {
		utils.Log.Error("Failed to load batch: %v", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		utils.Log.Warn("Batch is empty, nothing to analyze")
		return
	}

	builder := threading.NewBuilder(threading.Options{
		MinSubjectLength: cfg.Detector.MinSubjectLength,
		SubjectFallback:  cfg.Detector.SubjectFallback,
	})
	analysis := builder.Analyze(records)

	batchID := uuid.NewString()
	if err := persist(cfg, batchID, analysis); err != nil {
		utils.Log.Error("Failed to persist batch %s: %v", batchID, err)
	} else {
		utils.Log.Info("Batch %s stored (%d threads)", batchID, len(analysis.Threads))
	}

	localizer := utils.GetLocalizer(cfg.Report.Locale)
	fmt.Print(threading.Report(analysis, localizer))
}

// loadRecords obtains the batch either from a JSON file passed on the
// command line (the external extractor's handoff format) or by fetching the
// configured IMAP folder.
func loadRecords(cfg *config.Config) ([]*models.MessageRecord, error) {
	if len(os.Args) > 1 {
		utils.Log.Info("Loading batch file %s", os.Args[1])
		return ingest.LoadBatchFile(os.Args[1])
	}

	client, err := ingest.NewClient(cfg.IMAP.Server, cfg.IMAP.Port, cfg.IMAP.Username, cfg.IMAP.Password)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	client.SetFetchRate(cfg.IMAP.FetchPerMinute)
	if cfg.Cache.Folder != "" {
		ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
		client.UseCache(ingest.NewRecordCache(cfg.Cache.Folder), ttl)
	}

	return client.FetchRecords(cfg.IMAP.Folder, cfg.IMAP.FetchLimit)
}

func persist(cfg *config.Config, batchID string, analysis *threading.Analysis) error {
	store, err := storage.NewBatchStore(cfg.Storage.Folder)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.SaveAnalysis(&models.BatchAnalysis{
		BatchID:    batchID,
		AnalyzedAt: time.Now().UTC(),
		Records:    analysis.Records,
		Threads:    analysis.Threads,
		Originals:  analysis.Originals,
	})
}
