package experiment

import "context"

// Driver is the persistence boundary for ExperimentEvent, mirroring
// store.Driver's façade/driver split (spec §4.4: "ExperimentEvent writes
// are append-only and eventually visible").
type Driver interface {
	InsertEvent(ctx context.Context, e *ExperimentEvent) error
	Events(ctx context.Context, experimentID string) ([]*ExperimentEvent, error)
}

// PromptPromoter is the narrow slice of store.Store the Controller needs
// to auto-promote an experiment's winning variant (spec §4.4: "the
// controller calls C1 to mark the winning variant's prompt version as
// deployed").
type PromptPromoter interface {
	Deploy(ctx context.Context, promptID, version, authorID string) error
}
