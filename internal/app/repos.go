package app

import (
	"gorm.io/gorm"

	"github.com/velmora/philograph-backend/internal/data/repos"
	"github.com/velmora/philograph-backend/internal/pkg/logger"
)

type Repos struct {
	Concept       repos.ConceptRepo
	ConceptEdge   repos.ConceptEdgeRepo
	GenerationLog repos.GenerationLogRepo
	BranchStat    repos.BranchStatRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Concept:       repos.NewConceptRepo(db, log),
		ConceptEdge:   repos.NewConceptEdgeRepo(db, log),
		GenerationLog: repos.NewGenerationLogRepo(db, log),
		BranchStat:    repos.NewBranchStatRepo(db, log),
	}
}
