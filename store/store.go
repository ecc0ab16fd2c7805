package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/hermes/internal/diffutil"
	"github.com/hrygo/hermes/internal/herrors"
	"github.com/hrygo/hermes/internal/semverx"
)

// AutoBenchmarkHook is called by the Store after any content-changing
// update, letting C2 (the Benchmark Orchestrator) auto-trigger a run
// without C1 importing C2 directly (spec §4.2 triggerAutoBenchmark).
// Implementations must not block the caller for long; Store invokes the
// hook in its own goroutine.
type AutoBenchmarkHook func(promptID, changeSummary, authorID string)

// Store is the C1 façade: it owns the versioning protocol and state-machine
// validation, and delegates raw persistence to a Driver. Grounded on
// store/store.go's `Store{driver Driver}` shape in the teacher repo.
type Store struct {
	driver Driver
	hook   AutoBenchmarkHook

	// locks serializes operations per-prompt (spec §5: "a per-prompt
	// mutual-exclusion token"). Keyed by prompt id, striped into a fixed
	// number of buckets to bound memory instead of growing one mutex per
	// prompt forever.
	locks [256]sync.Mutex
}

// New creates a Store wrapping driver. hook may be nil.
func New(driver Driver, hook AutoBenchmarkHook) *Store {
	return &Store{driver: driver, hook: hook}
}

func (s *Store) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Create implements spec §4.1 create: a new Prompt at version 1.0.0 with
// one PromptVersion.
func (s *Store) Create(ctx context.Context, p CreateParams) (*Prompt, error) {
	if p.Slug == "" || p.Name == "" || p.Content == "" {
		return nil, herrors.Invalidf("slug, name and content are required")
	}
	if _, err := s.driver.GetPromptBySlug(ctx, p.Slug); err == nil {
		return nil, herrors.Conflictf("slug %q already in use", p.Slug)
	}

	now := time.Now().UTC()
	fp := fingerprint(p.Content)
	prompt := &Prompt{
		ID:          uuid.NewString(),
		Slug:        p.Slug,
		Name:        p.Name,
		Kind:        p.Kind,
		Category:    p.Category,
		Tags:        p.Tags,
		Content:     p.Content,
		Variables:   p.Variables,
		Metadata:    p.Metadata,
		Version:     semverx.Initial,
		Fingerprint: fp,
		State:       StateDraft,
		OwnerID:     p.OwnerID,
		OwnerKind:   p.OwnerKind,
		TeamID:      p.TeamID,
		Visibility:  p.Visibility,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	version := &PromptVersion{
		PromptID:      prompt.ID,
		Version:       semverx.Initial,
		Content:       p.Content,
		Fingerprint:   fp,
		ChangeSummary: "Initial version",
		AuthorID:      p.OwnerID,
		Variables:     p.Variables,
		Metadata:      p.Metadata,
		CreatedAt:     now,
	}

	if err := s.driver.InsertPrompt(ctx, prompt, version); err != nil {
		return nil, err
	}
	return prompt, nil
}

// GetByID returns the current head for id, or NotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*Prompt, error) {
	return s.driver.GetPromptByID(ctx, id)
}

// GetBySlug returns the current head for slug, or NotFound.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Prompt, error) {
	return s.driver.GetPromptBySlug(ctx, slug)
}

// GetVersion returns a specific historical snapshot.
func (s *Store) GetVersion(ctx context.Context, promptID, version string) (*PromptVersion, error) {
	return s.driver.GetVersion(ctx, promptID, version)
}

// ListVersions returns a prompt's linear history, newest first.
func (s *Store) ListVersions(ctx context.Context, promptID string, limit, offset int) ([]*PromptVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.driver.ListVersions(ctx, promptID, limit, offset)
}

// List implements spec §4.1 list.
func (s *Store) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.driver.List(ctx, filter)
}

// Update implements spec §4.1 update and the versioning protocol: a new
// PromptVersion is created only when the content's SHA-256 changes;
// metadata-only updates bump no version (spec §9 Open Question #1,
// resolved as codified in spec.md).
func (s *Store) Update(ctx context.Context, p UpdateParams) (*Prompt, error) {
	if p.ID == "" {
		return nil, herrors.Invalidf("id is required")
	}
	lock := s.lockFor(p.ID)
	lock.Lock()
	defer lock.Unlock()

	prompt, err := s.driver.GetPromptByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	contentChanged := false
	var newVersion *PromptVersion
	now := time.Now().UTC()

	if p.Content != nil {
		fp := fingerprint(*p.Content)
		if fp != prompt.Fingerprint {
			contentChanged = true
			nextVer, verErr := semverx.BumpPatch(prompt.Version)
			if verErr != nil {
				return nil, herrors.Invalidf("current version %q is not bumpable: %v", prompt.Version, verErr)
			}
			diff := diffutil.Unified(prompt.Content, *p.Content, "previous", "current")
			vars := prompt.Variables
			if p.Variables != nil {
				vars = p.Variables
			}
			meta := prompt.Metadata
			if p.Metadata != nil {
				meta = p.Metadata
			}
			newVersion = &PromptVersion{
				PromptID:      prompt.ID,
				Version:       nextVer,
				Content:       *p.Content,
				Fingerprint:   fp,
				Diff:          diff,
				ChangeSummary: p.ChangeSummary,
				AuthorID:      p.AuthorID,
				Variables:     vars,
				Metadata:      meta,
				CreatedAt:     now,
			}
			prompt.Content = *p.Content
			prompt.Fingerprint = fp
			prompt.Version = nextVer
		}
	}

	if p.Name != nil {
		prompt.Name = *p.Name
	}
	if p.Category != nil {
		prompt.Category = *p.Category
	}
	if p.Tags != nil {
		prompt.Tags = p.Tags
	}
	if p.Metadata != nil && !contentChanged {
		prompt.Metadata = p.Metadata
	}
	if p.Variables != nil && !contentChanged {
		prompt.Variables = p.Variables
	}
	if p.Visibility != nil {
		prompt.Visibility = *p.Visibility
	}
	if p.State != nil {
		if !CanTransition(prompt.State, *p.State) {
			return nil, herrors.Policyf("illegal state transition %s -> %s", prompt.State, *p.State)
		}
		prompt.State = *p.State
		if *p.State == StateDeployed {
			t := now
			prompt.LastDeployAt = &t
		}
	}
	prompt.UpdatedAt = now

	if err := s.driver.UpdatePromptHead(ctx, prompt, newVersion); err != nil {
		return nil, err
	}

	if contentChanged && s.hook != nil && prompt.Metadata["autoBenchmark"] != "false" {
		go s.hook(prompt.ID, p.ChangeSummary, p.AuthorID)
	}

	return prompt, nil
}

// Delete implements spec §4.1 delete: soft delete archives, hard cascades.
func (s *Store) Delete(ctx context.Context, id string, hard bool) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return s.driver.DeletePrompt(ctx, id, hard)
}

// Diff implements spec §4.1 diff: a unified diff between two stored
// versions. This is advisory; the authoritative artifact is the version's
// content itself (spec §4.1).
func (s *Store) Diff(ctx context.Context, promptID, versionA, versionB string) (string, error) {
	a, err := s.driver.GetVersion(ctx, promptID, versionA)
	if err != nil {
		return "", err
	}
	b, err := s.driver.GetVersion(ctx, promptID, versionB)
	if err != nil {
		return "", err
	}
	return diffutil.Unified(a.Content, b.Content, versionA, versionB), nil
}

// Rollback implements spec §4.1 rollback: never destructive. It appends a
// new version whose content equals targetVersion's; the diff field records
// the delta from the prior head; the change summary states
// "Rollback to vX.Y.Z".
func (s *Store) Rollback(ctx context.Context, promptID, targetVersion, authorID string) (*Prompt, error) {
	lock := s.lockFor(promptID)
	lock.Lock()
	defer lock.Unlock()

	target, err := s.driver.GetVersion(ctx, promptID, targetVersion)
	if err != nil {
		return nil, err
	}
	prompt, err := s.driver.GetPromptByID(ctx, promptID)
	if err != nil {
		return nil, err
	}

	diff := diffutil.Unified(prompt.Content, target.Content, "current", targetVersion)
	nextVer, err := semverx.BumpPatch(prompt.Version)
	if err != nil {
		return nil, herrors.Invalidf("current version %q is not bumpable: %v", prompt.Version, err)
	}

	now := time.Now().UTC()
	newVersion := &PromptVersion{
		PromptID:      prompt.ID,
		Version:       nextVer,
		Content:       target.Content,
		Fingerprint:   target.Fingerprint,
		Diff:          diff,
		ChangeSummary: "Rollback to v" + targetVersion,
		AuthorID:      authorID,
		Variables:     target.Variables,
		Metadata:      target.Metadata,
		CreatedAt:     now,
	}

	prompt.Content = target.Content
	prompt.Fingerprint = target.Fingerprint
	prompt.Version = nextVer
	prompt.Variables = target.Variables
	prompt.UpdatedAt = now

	if err := s.driver.UpdatePromptHead(ctx, prompt, newVersion); err != nil {
		return nil, err
	}

	slog.Info("prompt rolled back", "prompt_id", promptID, "target_version", targetVersion, "new_version", nextVer, "task_id", shortuuid.New())
	return prompt, nil
}

// promotionPath is the only state sequence that ends in StateDeployed
// (see the transitions table in types.go): draft -> review -> staged -> deployed.
var promotionPath = []State{StateDraft, StateReview, StateStaged, StateDeployed}

// Deploy marks version as the deployed head for promptID, for C4's
// auto-promote (spec §4.4: "mark the winning variant's prompt version as
// deployed"). If version is not already the current head, it is first
// restored via Rollback (non-destructively, per spec §4.1) before the state
// transition is applied. An experiment winner is not guaranteed to already
// be staged, and CanTransition forbids jumping straight from draft/review to
// deployed, so Deploy walks the remaining steps of promotionPath one at a
// time rather than requiring the caller to pre-stage the prompt. A prompt
// already deployed is a no-op; an archived prompt (off promotionPath
// entirely) is rejected.
func (s *Store) Deploy(ctx context.Context, promptID, version, authorID string) error {
	prompt, err := s.driver.GetPromptByID(ctx, promptID)
	if err != nil {
		return err
	}
	if prompt.Version != version {
		if _, err := s.Rollback(ctx, promptID, version, authorID); err != nil {
			return err
		}
	}

	idx := -1
	for i, st := range promotionPath {
		if st == prompt.State {
			idx = i
			break
		}
	}
	if idx == -1 {
		return herrors.Policyf("prompt %q is in state %q, cannot be promoted to deployed", promptID, prompt.State)
	}
	for _, next := range promotionPath[idx+1:] {
		next := next
		if _, err := s.Update(ctx, UpdateParams{ID: promptID, State: &next, AuthorID: authorID}); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBenchmarkCache is called by C2 after a benchmark run (spec §4.2:
// "insert BenchmarkResult, then update Prompt.lastBenchmarkScore"). It is
// advisory and best-effort: failures are logged, not returned as fatal,
// since the next run recomputes from the max-by-timestamp result anyway.
func (s *Store) UpdateBenchmarkCache(ctx context.Context, promptID string, score float64, at time.Time) {
	if err := s.driver.UpdateBenchmarkCache(ctx, promptID, score, at.Unix()); err != nil {
		slog.Warn("benchmark cache update failed (advisory only)", "prompt_id", promptID, "error", err)
	}
}
