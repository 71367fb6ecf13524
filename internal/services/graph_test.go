package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velmora/philograph-backend/internal/data/repos"
	"github.com/velmora/philograph-backend/internal/data/repos/testutil"
	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/apperrors"
)

// fakeEmbedder maps exact texts to fixed vectors; unknown texts get a
// distinct far-off default so they never collide with seeded concepts.
type fakeEmbedder struct {
	vecs map[string]domain.Vector
	err  error
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Vector, len(texts))
	for i, text := range texts {
		if v, ok := f.vecs[text]; ok {
			out[i] = v
		} else {
			out[i] = domain.Vector{0, 0, 1}
		}
	}
	return out, nil
}

type fakeGenerator struct {
	candidates []BranchCandidate
	err        error
	calls      int

	lesson      *LessonContent
	lessonErr   error
	lessonCalls int
}

func (f *fakeGenerator) GenerateBranches(ctx context.Context, sourceName, sourceDescription string) ([]BranchCandidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *fakeGenerator) GenerateLesson(ctx context.Context, conceptName string) (*LessonContent, error) {
	f.lessonCalls++
	if f.lessonErr != nil {
		return nil, f.lessonErr
	}
	return f.lesson, nil
}

type graphFixture struct {
	db       *gorm.DB
	concepts repos.ConceptRepo
	edges    repos.ConceptEdgeRepo
	stats    repos.BranchStatRepo
	logs     repos.GenerationLogRepo
	limiter  RateLimiter
	embedder *fakeEmbedder
	gen      *fakeGenerator
	svc      GraphService
}

func newGraphFixture(t *testing.T, limit int) *graphFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	f := &graphFixture{
		db:       db,
		concepts: repos.NewConceptRepo(db, log),
		edges:    repos.NewConceptEdgeRepo(db, log),
		stats:    repos.NewBranchStatRepo(db, log),
		logs:     repos.NewGenerationLogRepo(db, log),
		embedder: &fakeEmbedder{vecs: map[string]domain.Vector{}},
		gen:      &fakeGenerator{},
	}
	f.limiter = NewRateLimiter(log, f.logs, limit, time.Hour)
	f.svc = NewGraphService(
		log,
		GraphConfig{NeighborLimit: 3, SuggestMinSimilarity: 0, DedupMinSimilarity: 0.85},
		f.concepts,
		f.edges,
		f.stats,
		f.limiter,
		NewNeighborResolver(log, f.concepts),
		f.embedder,
		f.gen,
	)
	return f
}

func (f *graphFixture) seed(t *testing.T, name string, vec domain.Vector) *domain.Concept {
	t.Helper()
	c, err := f.concepts.Create(context.Background(), nil, &domain.Concept{
		Name:        name,
		Description: name + " description",
		Embedding:   vec,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return c
}

func defaultCandidates() []BranchCandidate {
	return []BranchCandidate{
		{Type: domain.BranchConstructive, TargetName: "Neostoicism", Description: "Extends stoic ethics."},
		{Type: domain.BranchCritique, TargetName: "Epicureanism", Description: "The rival school."},
		{Type: domain.BranchAuthor, TargetName: "Epictetus", Description: "Major stoic teacher."},
		{Type: domain.BranchWildcard, TargetName: "CBT", Description: "Modern therapy with stoic roots."},
	}
}

func TestGenerateNewBranchesCreatesConceptsAndEdges(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()
	user := uuid.New()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})
	f.gen.candidates = defaultCandidates()

	edges, err := f.svc.GenerateNewBranches(ctx, source.ID, user)
	if err != nil {
		t.Fatalf("GenerateNewBranches: %v", err)
	}
	if len(edges) != 4 {
		t.Fatalf("edges = %d", len(edges))
	}
	seenTypes := map[domain.BranchType]bool{}
	for _, e := range edges {
		if e.SourceConceptID != source.ID {
			t.Fatalf("edge source = %v", e.SourceConceptID)
		}
		seenTypes[e.BranchType] = true
		target, err := f.concepts.GetByID(ctx, nil, e.TargetConceptID)
		if err != nil || target == nil {
			t.Fatalf("edge target missing: %v err=%v", e.TargetConceptID, err)
		}
		if !target.HasEmbedding() {
			t.Fatalf("target %s stored without embedding", target.Name)
		}
	}
	if len(seenTypes) != 4 {
		t.Fatalf("branch types = %v", seenTypes)
	}

	// Exactly one quota entry for the whole batch.
	if n, err := f.logs.CountSince(ctx, nil, user, time.Now().UTC().Add(-time.Hour)); err != nil || n != 1 {
		t.Fatalf("quota entries: n=%d err=%v", n, err)
	}

	// The new edges are now connected and excluded from the next offer.
	offer, err := f.svc.OfferBranches(ctx, source.ID, user)
	if err != nil {
		t.Fatalf("OfferBranches: %v", err)
	}
	for _, n := range offer.Neighbors {
		for _, e := range edges {
			if n.Concept.ID == e.TargetConceptID {
				t.Fatalf("connected concept %s offered again", n.Concept.Name)
			}
		}
	}
}

func TestGenerateNewBranchesDedupsAgainstExisting(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()
	user := uuid.New()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})
	existing := f.seed(t, "Epicurean Philosophy", domain.Vector{0, 1, 0})

	f.gen.candidates = defaultCandidates()
	// The critique candidate embeds right on top of the seeded concept.
	critique := f.gen.candidates[1]
	f.embedder.vecs[ConceptEmbeddingText(critique.TargetName, critique.Description)] = domain.Vector{0, 1, 0.01}

	edges, err := f.svc.GenerateNewBranches(ctx, source.ID, user)
	if err != nil {
		t.Fatalf("GenerateNewBranches: %v", err)
	}
	if len(edges) != 4 {
		t.Fatalf("edges = %d", len(edges))
	}

	var critiqueEdge *domain.ConceptEdge
	for _, e := range edges {
		if e.BranchType == domain.BranchCritique {
			critiqueEdge = e
		}
	}
	if critiqueEdge == nil || critiqueEdge.TargetConceptID != existing.ID {
		t.Fatalf("critique edge did not fold into existing concept: %+v", critiqueEdge)
	}
	// No concept was minted under the candidate's name.
	if got, err := f.concepts.GetBySlug(ctx, nil, domain.Slugify(critique.TargetName)); err != nil || got != nil {
		t.Fatalf("duplicate concept minted: got=%v err=%v", got, err)
	}
}

func TestGenerateNewBranchesSlugCollisionReusesConcept(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})
	// Same slug as the author candidate but embedded far away, so dedup
	// misses it and the unique index is the backstop.
	existing := f.seed(t, "Epictetus", domain.Vector{0, 1, 0})

	f.gen.candidates = defaultCandidates()

	edges, err := f.svc.GenerateNewBranches(ctx, source.ID, uuid.New())
	if err != nil {
		t.Fatalf("GenerateNewBranches: %v", err)
	}
	var authorEdge *domain.ConceptEdge
	for _, e := range edges {
		if e.BranchType == domain.BranchAuthor {
			authorEdge = e
		}
	}
	if authorEdge == nil || authorEdge.TargetConceptID != existing.ID {
		t.Fatalf("author edge did not reuse slug owner: %+v", authorEdge)
	}
}

func TestGenerateNewBranchesFailedBatchConsumesNoQuota(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()
	user := uuid.New()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})
	f.gen.err = &apperrors.GenerationError{Reason: "malformed branch batch"}

	_, err := f.svc.GenerateNewBranches(ctx, source.ID, user)
	if !apperrors.IsGenerationFailed(err) {
		t.Fatalf("err = %v, want GenerationError", err)
	}

	if n, err := f.logs.CountSince(ctx, nil, user, time.Now().UTC().Add(-time.Hour)); err != nil || n != 0 {
		t.Fatalf("quota consumed on failed batch: n=%d err=%v", n, err)
	}
	if rows, err := f.concepts.ListEmbedded(ctx, nil, []uuid.UUID{source.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("concepts written on failed batch: err=%v len=%d", err, len(rows))
	}
	if edges, err := f.svc.ListEdges(ctx, source.ID); err != nil || len(edges) != 0 {
		t.Fatalf("edges written on failed batch: err=%v len=%d", err, len(edges))
	}
}

func TestGenerateNewBranchesUnsluggableNameRejectsBatch(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()
	user := uuid.New()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})
	cands := defaultCandidates()
	cands[2].TargetName = "老子"
	f.gen.candidates = cands

	_, err := f.svc.GenerateNewBranches(ctx, source.ID, user)
	if !apperrors.IsGenerationFailed(err) {
		t.Fatalf("err = %v, want GenerationError", err)
	}

	if edges, err := f.svc.ListEdges(ctx, source.ID); err != nil || len(edges) != 0 {
		t.Fatalf("edges written for rejected batch: err=%v len=%d", err, len(edges))
	}
	if rows, err := f.concepts.SearchByName(ctx, nil, "Neostoicism", 0); err != nil || len(rows) != 0 {
		t.Fatalf("sibling concepts written for rejected batch: err=%v len=%d", err, len(rows))
	}
	if n, err := f.logs.CountSince(ctx, nil, user, time.Now().UTC().Add(-time.Hour)); err != nil || n != 0 {
		t.Fatalf("quota consumed on rejected batch: n=%d err=%v", n, err)
	}
}

func TestGenerateNewBranchesRateLimited(t *testing.T) {
	f := newGraphFixture(t, 2)
	ctx := context.Background()
	user := uuid.New()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})
	f.gen.candidates = defaultCandidates()

	for i := 0; i < 2; i++ {
		if _, err := f.svc.GenerateNewBranches(ctx, source.ID, user); err != nil {
			t.Fatalf("GenerateNewBranches #%d: %v", i, err)
		}
	}

	_, err := f.svc.GenerateNewBranches(ctx, source.ID, user)
	if !apperrors.IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limited", err)
	}
	var rle *apperrors.RateLimitError
	errors.As(err, &rle)
	if rle.Remaining != 0 || rle.ResetAt == nil {
		t.Fatalf("RateLimitError = %+v", rle)
	}
	if f.gen.calls != 2 {
		t.Fatalf("model called %d times, want 2", f.gen.calls)
	}

	// The offer reflects the exhausted quota but still lists neighbors.
	offer, err := f.svc.OfferBranches(ctx, source.ID, user)
	if err != nil {
		t.Fatalf("OfferBranches: %v", err)
	}
	if offer.CanGenerate {
		t.Fatalf("CanGenerate = true with exhausted quota")
	}
}

func TestGenerateNewBranchesEmbeddingOutageDegrades(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()
	user := uuid.New()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})
	f.gen.candidates = defaultCandidates()
	f.embedder.err = fmt.Errorf("embedding provider down")

	edges, err := f.svc.GenerateNewBranches(ctx, source.ID, user)
	if err != nil {
		t.Fatalf("GenerateNewBranches: %v", err)
	}
	if len(edges) != 4 {
		t.Fatalf("edges = %d", len(edges))
	}
	for _, e := range edges {
		target, err := f.concepts.GetByID(ctx, nil, e.TargetConceptID)
		if err != nil || target == nil {
			t.Fatalf("target missing: %v", err)
		}
		if target.HasEmbedding() {
			t.Fatalf("target %s has embedding despite outage", target.Name)
		}
	}
	// A usable batch still costs quota.
	if n, err := f.logs.CountSince(ctx, nil, user, time.Now().UTC().Add(-time.Hour)); err != nil || n != 1 {
		t.Fatalf("quota entries: n=%d err=%v", n, err)
	}
}

func TestGenerateNewBranchesMissingSource(t *testing.T) {
	f := newGraphFixture(t, 10)
	_, err := f.svc.GenerateNewBranches(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestOfferBranchesEmptyGraph(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})

	offer, err := f.svc.OfferBranches(ctx, source.ID, uuid.New())
	if err != nil {
		t.Fatalf("OfferBranches: %v", err)
	}
	if len(offer.Neighbors) != 0 {
		t.Fatalf("Neighbors = %v", offer.Neighbors)
	}
	if !offer.CanGenerate {
		t.Fatalf("CanGenerate = false on fresh quota")
	}
}

func TestOfferBranchesRanksAndExcludes(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()
	user := uuid.New()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})
	near := f.seed(t, "Cynicism", domain.Vector{1, 0.1, 0})
	mid := f.seed(t, "Epicureanism", domain.Vector{1, 1, 0})
	connected := f.seed(t, "Epictetus", domain.Vector{1, 0.05, 0})

	if _, err := f.svc.AcceptNeighbor(ctx, source.ID, connected.ID, user, domain.BranchAuthor, "stoic teacher"); err != nil {
		t.Fatalf("AcceptNeighbor: %v", err)
	}

	offer, err := f.svc.OfferBranches(ctx, source.ID, user)
	if err != nil {
		t.Fatalf("OfferBranches: %v", err)
	}
	if len(offer.Neighbors) != 2 {
		t.Fatalf("Neighbors = %d", len(offer.Neighbors))
	}
	if offer.Neighbors[0].Concept.ID != near.ID || offer.Neighbors[1].Concept.ID != mid.ID {
		t.Fatalf("Neighbor order: %v, %v", offer.Neighbors[0].Concept.Name, offer.Neighbors[1].Concept.Name)
	}
}

func TestOfferBranchesBackfillsSourceEmbedding(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()

	source := f.seed(t, "Stoicism", nil)
	neighbor := f.seed(t, "Cynicism", domain.Vector{1, 0, 0})
	f.embedder.vecs[ConceptEmbeddingText(source.Name, source.Description)] = domain.Vector{1, 0.1, 0}

	offer, err := f.svc.OfferBranches(ctx, source.ID, uuid.New())
	if err != nil {
		t.Fatalf("OfferBranches: %v", err)
	}
	if len(offer.Neighbors) != 1 || offer.Neighbors[0].Concept.ID != neighbor.ID {
		t.Fatalf("Neighbors = %v", offer.Neighbors)
	}
	got, err := f.concepts.GetByID(ctx, nil, source.ID)
	if err != nil || got == nil || !got.HasEmbedding() {
		t.Fatalf("source embedding not persisted: got=%v err=%v", got, err)
	}
}

func TestAcceptNeighborIdempotent(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()
	user := uuid.New()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})
	target := f.seed(t, "Cynicism", domain.Vector{0, 1, 0})

	first, err := f.svc.AcceptNeighbor(ctx, source.ID, target.ID, user, domain.BranchConstructive, "precursor school")
	if err != nil {
		t.Fatalf("AcceptNeighbor: %v", err)
	}
	second, err := f.svc.AcceptNeighbor(ctx, source.ID, target.ID, user, domain.BranchCritique, "other text")
	if err != nil {
		t.Fatalf("AcceptNeighbor repeat: %v", err)
	}
	if second.ID != first.ID || second.BranchType != domain.BranchConstructive {
		t.Fatalf("repeat accept returned %+v, want original edge", second)
	}

	// Unknown type falls back to wildcard rather than failing the accept.
	other := f.seed(t, "Epicureanism", domain.Vector{1, 1, 0})
	edge, err := f.svc.AcceptNeighbor(ctx, source.ID, other.ID, user, domain.BranchType("skeptical"), "")
	if err != nil {
		t.Fatalf("AcceptNeighbor invalid type: %v", err)
	}
	if edge.BranchType != domain.BranchWildcard {
		t.Fatalf("fallback type = %q", edge.BranchType)
	}

	if _, err := f.svc.AcceptNeighbor(ctx, source.ID, uuid.New(), user, domain.BranchAuthor, ""); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing target: err=%v, want ErrNotFound", err)
	}
}

func TestRecordChoice(t *testing.T) {
	f := newGraphFixture(t, 10)
	ctx := context.Background()

	source := f.seed(t, "Stoicism", domain.Vector{1, 0, 0})

	f.svc.RecordChoice(ctx, source.ID, domain.BranchCritique)
	f.svc.RecordChoice(ctx, source.ID, domain.BranchCritique)
	f.svc.RecordChoice(ctx, source.ID, domain.BranchType("bogus")) // swallowed

	stats, err := f.stats.ListByConcept(ctx, nil, source.ID)
	if err != nil || len(stats) != 1 {
		t.Fatalf("stats: err=%v len=%d", err, len(stats))
	}
	if stats[0].BranchType != domain.BranchCritique || stats[0].ChosenCount != 2 {
		t.Fatalf("stat = %+v", stats[0])
	}
}
