// Backfills embeddings for concepts stored without one (embedding outages
// during generation, or pre-embedding seed data). Until a concept carries a
// vector it is invisible to similarity search and dedup, so this is worth
// running after any extended provider outage.
//
// Usage: go run scripts/backfill_embeddings.go [-dry-run] [-batch 32]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/velmora/philograph-backend/internal/clients/openai"
	"github.com/velmora/philograph-backend/internal/data/db"
	"github.com/velmora/philograph-backend/internal/data/repos"
	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
	"github.com/velmora/philograph-backend/internal/services"
	"github.com/velmora/philograph-backend/internal/utils"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report unembedded concepts without writing")
	batchSize := flag.Int("batch", 32, "embedding batch size")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	gdb := pg.DB()

	ai, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("OpenAI client init failed", "error", err)
	}
	dims := utils.GetEnvAsInt("EMBEDDING_DIMENSIONS", 1536, log)
	embedder := services.NewEmbeddingService(log, ai, dims)
	conceptRepo := repos.NewConceptRepo(gdb, log)

	ctx := context.Background()

	var pending []*domain.Concept
	if err := gdb.WithContext(ctx).Where("embedding IS NULL").Find(&pending).Error; err != nil {
		log.Fatal("Listing unembedded concepts failed", "error", err)
	}
	log.Info("Unembedded concepts found", "count", len(pending))
	if *dryRun || len(pending) == 0 {
		return
	}

	var done, failed int
	for start := 0; start < len(pending); start += *batchSize {
		end := start + *batchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		texts := make([]string, len(chunk))
		for i, c := range chunk {
			texts[i] = services.ConceptEmbeddingText(c.Name, c.Description)
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			log.Warn("Batch embedding failed, skipping chunk", "start", start, "error", err)
			failed += len(chunk)
			continue
		}

		for i, c := range chunk {
			if err := conceptRepo.UpdateFields(ctx, nil, c.ID, map[string]interface{}{"embedding": vectors[i]}); err != nil {
				log.Warn("Embedding write failed", "concept_id", c.ID, "error", err)
				failed++
				continue
			}
			done++
		}
		time.Sleep(200 * time.Millisecond)
	}

	log.Info("Backfill complete", "embedded", done, "failed", failed)
}
