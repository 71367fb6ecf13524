package app

import (
	"time"

	"github.com/velmora/philograph-backend/internal/pkg/logger"
	"github.com/velmora/philograph-backend/internal/services"
	"github.com/velmora/philograph-backend/internal/utils"
)

type Config struct {
	JWTSecretKey string

	GenerationRateLimit  int
	GenerationRateWindow time.Duration

	Graph services.GraphConfig

	EmbeddingDimensions int
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	rateLimit := utils.GetEnvAsInt("GENERATION_RATE_LIMIT", 10, log)
	rateWindowMinutes := utils.GetEnvAsInt("GENERATION_RATE_WINDOW_MINUTES", 60, log)
	neighborLimit := utils.GetEnvAsInt("NEIGHBOR_SUGGEST_LIMIT", 3, log)
	suggestMinSim := utils.GetEnvAsFloat("NEIGHBOR_MIN_SIMILARITY", 0, log)
	dedupMinSim := utils.GetEnvAsFloat("DEDUP_MIN_SIMILARITY", 0.85, log)
	embeddingDims := utils.GetEnvAsInt("EMBEDDING_DIMENSIONS", 1536, log)

	return Config{
		JWTSecretKey:         jwtSecretKey,
		GenerationRateLimit:  rateLimit,
		GenerationRateWindow: time.Duration(rateWindowMinutes) * time.Minute,
		Graph: services.GraphConfig{
			NeighborLimit:        neighborLimit,
			SuggestMinSimilarity: suggestMinSim,
			DedupMinSimilarity:   dedupMinSim,
		},
		EmbeddingDimensions: embeddingDims,
	}
}
