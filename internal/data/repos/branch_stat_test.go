package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/velmora/philograph-backend/internal/data/repos/testutil"
	"github.com/velmora/philograph-backend/internal/domain"
)

func TestBranchStatRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewBranchStatRepo(db, testutil.Logger(t))

	concept := uuid.New()

	// Three choices of the same type land on one row.
	for i := 0; i < 3; i++ {
		if err := repo.Increment(ctx, nil, concept, domain.BranchCritique); err != nil {
			t.Fatalf("Increment critique #%d: %v", i, err)
		}
	}
	if err := repo.Increment(ctx, nil, concept, domain.BranchAuthor); err != nil {
		t.Fatalf("Increment author: %v", err)
	}

	// Invalid input is a silent no-op; analytics never push back.
	if err := repo.Increment(ctx, nil, concept, domain.BranchType("skeptical")); err != nil {
		t.Fatalf("Increment invalid type: %v", err)
	}
	if err := repo.Increment(ctx, nil, uuid.Nil, domain.BranchCritique); err != nil {
		t.Fatalf("Increment nil concept: %v", err)
	}

	stats, err := repo.ListByConcept(ctx, nil, concept)
	if err != nil || len(stats) != 2 {
		t.Fatalf("ListByConcept: err=%v len=%d", err, len(stats))
	}
	// Ordered by branch type: author before critique.
	if stats[0].BranchType != domain.BranchAuthor || stats[0].ChosenCount != 1 {
		t.Fatalf("author stat = %+v", stats[0])
	}
	if stats[1].BranchType != domain.BranchCritique || stats[1].ChosenCount != 3 {
		t.Fatalf("critique stat = %+v", stats[1])
	}

	if stats, err := repo.ListByConcept(ctx, nil, uuid.New()); err != nil || len(stats) != 0 {
		t.Fatalf("ListByConcept miss: err=%v len=%d", err, len(stats))
	}
}
