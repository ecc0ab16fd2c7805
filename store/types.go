// Package store implements C1, the Prompt Store: content-addressed,
// versioned storage of prompts with a linear history and non-destructive
// rollback. The package follows the teacher's Store/Driver split
// (store/store.go): entity types and the business-rule façade live here;
// persistence is delegated to a Driver implementation (store/db/sqlite,
// store/db/postgres).
package store

import "time"

// Kind classifies what a prompt is used for; it also selects the default
// benchmark suite (see benchmark.SuiteForKind).
type Kind string

const (
	KindAgentSystem     Kind = "agent-system"
	KindUserTemplate    Kind = "user-template"
	KindToolDefinition  Kind = "tool-definition"
	KindInstructionSpec Kind = "instruction-spec"
)

// State is a Prompt's lifecycle state (spec §4.1).
type State string

const (
	StateDraft    State = "draft"
	StateReview   State = "review"
	StateStaged   State = "staged"
	StateDeployed State = "deployed"
	StateArchived State = "archived"
)

// transitions enumerates the valid State -> State moves (spec §4.1):
// draft -> review -> staged -> deployed -> archived; draft/review may
// return to draft; deployed may be archived; archived is terminal.
var transitions = map[State]map[State]bool{
	StateDraft:    {StateReview: true, StateDraft: true},
	StateReview:   {StateStaged: true, StateDraft: true},
	StateStaged:   {StateDeployed: true, StateDraft: true},
	StateDeployed: {StateArchived: true},
	StateArchived: {},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// OwnerKind classifies who owns a Prompt.
type OwnerKind string

const (
	OwnerUser   OwnerKind = "user"
	OwnerAgent  OwnerKind = "agent"
	OwnerSystem OwnerKind = "system"
)

// Visibility controls who may list/read a Prompt outside its owner.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityOrg     Visibility = "org"
	VisibilityPublic  Visibility = "public"
)

// Prompt is the canonical, mutable head of a versioned document (spec §3).
type Prompt struct {
	ID   string
	Slug string
	Name string
	Kind Kind

	Category string
	Tags     []string

	Content  string
	Variables map[string]VariableSchema
	Metadata  map[string]string

	Version     string // current semver "M.m.p"
	Fingerprint string // hex SHA-256 of Content

	State        State
	LastDeployAt *time.Time

	OwnerID    string
	OwnerKind  OwnerKind
	TeamID     string
	Visibility Visibility

	LastBenchmarkScore *float64
	LastBenchmarkAt    *time.Time

	ExternalSourcePath   string
	ExternalSourceCommit string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// VariableSchema describes one template variable's expected shape.
type VariableSchema struct {
	Type        string
	Description string
	Required    bool
	Default     string
}

// PromptVersion is an immutable historical snapshot (spec §3).
type PromptVersion struct {
	PromptID      string
	Version       string
	Content       string
	Fingerprint   string
	Diff          string // nullable: empty for the initial version
	ChangeSummary string
	AuthorID      string
	Variables     map[string]VariableSchema
	Metadata      map[string]string
	CreatedAt     time.Time
}

// CreateParams is the input to Store.Create.
type CreateParams struct {
	Slug      string
	Name      string
	Kind      Kind
	Content   string
	Metadata  map[string]string
	Variables map[string]VariableSchema
	OwnerID   string
	OwnerKind OwnerKind
	TeamID    string
	Visibility Visibility
	Category  string
	Tags      []string
}

// UpdateParams is the input to Store.Update. Nil pointers mean "leave
// unchanged"; only Content triggers the versioning protocol.
type UpdateParams struct {
	ID            string
	Content       *string
	Name          *string
	Category      *string
	Tags          []string
	Metadata      map[string]string
	Variables     map[string]VariableSchema
	State         *State
	Visibility    *Visibility
	ChangeSummary string
	AuthorID      string
}

// ListFilter filters Store.List.
type ListFilter struct {
	Kind       *Kind
	State      *State
	Category   string
	OwnerID    string
	TeamID     string
	Visibility *Visibility
	TextSearch string
	Limit      int
	Offset     int
}

// ListResult is a page of prompts plus the total matching count.
type ListResult struct {
	Items []*Prompt
	Total int
}
