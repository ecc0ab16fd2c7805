package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/hermes/store"
	"github.com/hrygo/hermes/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	driver, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	return store.New(driver, nil)
}

// TestVersionBumpOnContentChange implements spec.md scenario S1.
func TestVersionBumpOnContentChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.Create(ctx, store.CreateParams{
		Slug: "t1", Name: "T1", Kind: store.KindUserTemplate, Content: "A", OwnerID: "u1",
	})
	require.NoError(t, err)
	require.Equal(t, "1.0.0", p.Version)

	content := "B"
	updated, err := s.Update(ctx, store.UpdateParams{ID: p.ID, Content: &content, AuthorID: "u1", ChangeSummary: "edit"})
	require.NoError(t, err)
	require.Equal(t, "1.0.1", updated.Version)

	versions, err := s.ListVersions(ctx, p.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	diff, err := s.Diff(ctx, p.ID, "1.0.0", "1.0.1")
	require.NoError(t, err)
	require.Contains(t, diff, "-A")
	require.Contains(t, diff, "+B")

	// Updating again with identical content bumps no version.
	same := "B"
	_, err = s.Update(ctx, store.UpdateParams{ID: p.ID, Content: &same, AuthorID: "u1"})
	require.NoError(t, err)
	versions, err = s.ListVersions(ctx, p.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, versions, 2)
}

func TestRollbackIsNonDestructive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.Create(ctx, store.CreateParams{Slug: "t2", Name: "T2", Kind: store.KindUserTemplate, Content: "A", OwnerID: "u1"})
	require.NoError(t, err)

	c2 := "B"
	_, err = s.Update(ctx, store.UpdateParams{ID: p.ID, Content: &c2, AuthorID: "u1"})
	require.NoError(t, err)

	rolled, err := s.Rollback(ctx, p.ID, "1.0.0", "u1")
	require.NoError(t, err)
	require.Equal(t, "1.0.2", rolled.Version)
	require.Equal(t, "A", rolled.Content)

	versions, err := s.ListVersions(ctx, p.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, versions, 3)
}

func TestSlugUniqueness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Create(ctx, store.CreateParams{Slug: "dup", Name: "N", Kind: store.KindUserTemplate, Content: "A", OwnerID: "u1"})
	require.NoError(t, err)

	_, err = s.Create(ctx, store.CreateParams{Slug: "dup", Name: "N2", Kind: store.KindUserTemplate, Content: "B", OwnerID: "u1"})
	require.Error(t, err)
}

func TestStateTransitions(t *testing.T) {
	require.True(t, store.CanTransition(store.StateDraft, store.StateReview))
	require.True(t, store.CanTransition(store.StateReview, store.StateStaged))
	require.True(t, store.CanTransition(store.StateStaged, store.StateDeployed))
	require.True(t, store.CanTransition(store.StateDeployed, store.StateArchived))
	require.False(t, store.CanTransition(store.StateArchived, store.StateDraft))
	require.False(t, store.CanTransition(store.StateDraft, store.StateDeployed))
}

// TestDeployPromotesFromDraft covers C4's auto-promote path (spec §4.4): a
// freshly created prompt starts in StateDraft, which cannot transition
// directly to StateDeployed, so Deploy must walk it through review and
// staged rather than failing with a policy error.
func TestDeployPromotesFromDraft(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.Create(ctx, store.CreateParams{Slug: "t3", Name: "T3", Kind: store.KindUserTemplate, Content: "A", OwnerID: "u1"})
	require.NoError(t, err)
	require.Equal(t, store.StateDraft, p.State)

	require.NoError(t, s.Deploy(ctx, p.ID, p.Version, "agent"))

	deployed, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, store.StateDeployed, deployed.State)
}

// TestDeployRejectsArchived covers the other end of promotionPath: an
// archived prompt has no route to deployed and Deploy must say so rather
// than silently doing nothing or erroring opaquely.
func TestDeployRejectsArchived(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p, err := s.Create(ctx, store.CreateParams{Slug: "t4", Name: "T4", Kind: store.KindUserTemplate, Content: "A", OwnerID: "u1"})
	require.NoError(t, err)

	review := store.StateReview
	_, err = s.Update(ctx, store.UpdateParams{ID: p.ID, State: &review, AuthorID: "u1"})
	require.NoError(t, err)
	staged := store.StateStaged
	_, err = s.Update(ctx, store.UpdateParams{ID: p.ID, State: &staged, AuthorID: "u1"})
	require.NoError(t, err)
	deployed := store.StateDeployed
	_, err = s.Update(ctx, store.UpdateParams{ID: p.ID, State: &deployed, AuthorID: "u1"})
	require.NoError(t, err)
	archived := store.StateArchived
	_, err = s.Update(ctx, store.UpdateParams{ID: p.ID, State: &archived, AuthorID: "u1"})
	require.NoError(t, err)

	err = s.Deploy(ctx, p.ID, p.Version, "agent")
	require.Error(t, err)
}
