package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/velmora/philograph-backend/internal/data/repos/testutil"
	"github.com/velmora/philograph-backend/internal/domain"
	"github.com/velmora/philograph-backend/internal/pkg/apperrors"
)

func TestConceptRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewConceptRepo(db, testutil.Logger(t))

	stoicism, err := repo.Create(ctx, nil, &domain.Concept{
		Name:        "Stoicism",
		Description: "Virtue as the only good.",
		Embedding:   domain.Vector{1, 0, 0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if stoicism.ID == uuid.Nil || stoicism.Slug != "stoicism" {
		t.Fatalf("Create: id=%v slug=%q", stoicism.ID, stoicism.Slug)
	}

	// Unembedded row, slug derived from a messy name.
	virtue, err := repo.Create(ctx, nil, &domain.Concept{Name: "Virtue Ethics (Aristotle)"})
	if err != nil {
		t.Fatalf("Create unembedded: %v", err)
	}
	if virtue.Slug != "virtue-ethics-aristotle" {
		t.Fatalf("derived slug = %q", virtue.Slug)
	}

	// Same name, different casing: collides on slug.
	if _, err := repo.Create(ctx, nil, &domain.Concept{Name: "STOICISM"}); !errors.Is(err, apperrors.ErrDuplicateSlug) {
		t.Fatalf("duplicate slug: err=%v, want ErrDuplicateSlug", err)
	}

	if _, err := repo.Create(ctx, nil, &domain.Concept{Name: "   "}); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("blank name: err=%v, want ErrInvalidArgument", err)
	}

	if got, err := repo.GetBySlug(ctx, nil, "stoicism"); err != nil || got == nil || got.ID != stoicism.ID {
		t.Fatalf("GetBySlug: got=%v err=%v", got, err)
	}
	if got, err := repo.GetBySlug(ctx, nil, "no-such-slug"); err != nil || got != nil {
		t.Fatalf("GetBySlug miss: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByID(ctx, nil, stoicism.ID); err != nil || got == nil || got.Slug != "stoicism" {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByID(ctx, nil, uuid.New()); err != nil || got != nil {
		t.Fatalf("GetByID miss: got=%v err=%v", got, err)
	}
	if rows, err := repo.GetByIDs(ctx, nil, []uuid.UUID{stoicism.ID, virtue.ID}); err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	if rows, err := repo.SearchByName(ctx, nil, "stoic", 10); err != nil || len(rows) != 1 || rows[0].ID != stoicism.ID {
		t.Fatalf("SearchByName: err=%v rows=%v", err, rows)
	}
	if rows, err := repo.SearchByName(ctx, nil, "  ", 10); err != nil || len(rows) != 0 {
		t.Fatalf("SearchByName blank: err=%v len=%d", err, len(rows))
	}

	// Only the embedded concept shows up, and exclusion drops it.
	if rows, err := repo.ListEmbedded(ctx, nil, nil); err != nil || len(rows) != 1 || rows[0].ID != stoicism.ID {
		t.Fatalf("ListEmbedded: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListEmbedded(ctx, nil, []uuid.UUID{stoicism.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("ListEmbedded exclude: err=%v len=%d", err, len(rows))
	}

	if err := repo.UpdateFields(ctx, nil, virtue.ID, map[string]interface{}{"embedding": domain.Vector{0, 1, 0}}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err := repo.GetByID(ctx, nil, virtue.ID)
	if err != nil || got == nil || !got.HasEmbedding() {
		t.Fatalf("embedding roundtrip: got=%v err=%v", got, err)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != 1 {
		t.Fatalf("embedding values = %v", got.Embedding)
	}
	if rows, err := repo.ListEmbedded(ctx, nil, nil); err != nil || len(rows) != 2 {
		t.Fatalf("ListEmbedded after backfill: err=%v len=%d", err, len(rows))
	}
}
