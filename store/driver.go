package store

import "context"

// Driver is the persistence boundary the Store façade delegates to,
// grounded on store/store.go's Driver interface in the teacher repo: the
// façade owns business rules (versioning protocol, state-machine checks,
// per-prompt serialization); the Driver owns raw CRUD against whatever
// database backs it.
type Driver interface {
	// InsertPrompt persists a brand-new Prompt and its initial
	// PromptVersion atomically. A taken slug surfaces as the backend's
	// unique-constraint error, not as a Conflict error; Store.Create looks
	// the slug up first and returns Conflict when it is taken.
	InsertPrompt(ctx context.Context, p *Prompt, v *PromptVersion) error

	// GetPromptByID/GetPromptBySlug return the current head, or NotFound.
	GetPromptByID(ctx context.Context, id string) (*Prompt, error)
	GetPromptBySlug(ctx context.Context, slug string) (*Prompt, error)

	// GetVersion returns a specific (promptID, version) snapshot.
	GetVersion(ctx context.Context, promptID, version string) (*PromptVersion, error)

	// ListVersions returns a prompt's version history, newest first.
	ListVersions(ctx context.Context, promptID string, limit, offset int) ([]*PromptVersion, error)

	// List returns prompts matching filter plus the total matching count.
	List(ctx context.Context, filter ListFilter) (ListResult, error)

	// UpdatePromptHead replaces the prompt row (head fields only); if
	// newVersion is non-nil it is inserted as a new PromptVersion in the
	// same atomic unit (spec §4.1 "head update + version insert succeed or
	// fail together").
	UpdatePromptHead(ctx context.Context, p *Prompt, newVersion *PromptVersion) error

	// DeletePrompt removes or archives a prompt. hard=true deletes the
	// prompt and all its versions; benchmark results stored for the prompt
	// are not deleted.
	DeletePrompt(ctx context.Context, id string, hard bool) error

	// UpdateBenchmarkCache sets Prompt.LastBenchmarkScore/LastBenchmarkAt,
	// best-effort: spec §4.2 treats this cache as advisory.
	UpdateBenchmarkCache(ctx context.Context, promptID string, score float64, at int64) error
}
