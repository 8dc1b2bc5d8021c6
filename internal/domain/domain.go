// Package domain holds the core entities from the specification's data
// model: UserProfile, MemoryFact, UserMemory, CollectiveFact,
// CollectiveFactSource, RetrievedChunk, ParentDocument, Conversation, and
// the journey types. These are plain structs — the domain layer owns no
// behavior beyond small invariant checks; persistence and retrieval live in
// internal/relstore, internal/vectorstore, and internal/memory.
package domain

import "time"

// UserProfile is read by the core but owned by the external auth edge.
type UserProfile struct {
	ID               string // email-like id
	DisplayName      string
	RoleTag          string
	PreferredLang    string // 2-letter code
	Notes            string
	EmotionalStyle   string
}

// FactType enumerates the kinds of per-user MemoryFact content.
type FactType string

const (
	FactIdentity   FactType = "identity"
	FactLocation   FactType = "location"
	FactPreference FactType = "preference"
	FactEvent      FactType = "event"
	FactGoal       FactType = "goal"
	FactGeneral    FactType = "general"
)

// FactSource enumerates where a MemoryFact came from.
type FactSource string

const (
	SourceUser     FactSource = "user"
	SourceInferred FactSource = "inferred"
	SourceSystem   FactSource = "system"
)

// MaxFactContentLen bounds MemoryFact.Content per the data model (~300 chars).
const MaxFactContentLen = 300

// MemoryFact is a single per-user fact.
type MemoryFact struct {
	ID         string
	UserID     string
	Content    string
	Type       FactType
	Source     FactSource
	Confidence float64 // in [0,1]
	CreatedAt  time.Time
}

// UserMemory is a derived, bounded view over a user's facts.
type UserMemory struct {
	UserID        string
	ProfileFacts  []*MemoryFact // most recent first, bounded ~50
	Summary       string
	Counters      map[string]int // conversations, searches, tasks
	LastUpdatedAt time.Time
}

// MaxProfileFacts bounds UserMemory.ProfileFacts.
const MaxProfileFacts = 50

// CollectiveCategory enumerates CollectiveFact categories.
type CollectiveCategory string

const (
	CategoryProcess    CollectiveCategory = "process"
	CategoryLocation   CollectiveCategory = "location"
	CategoryProvider   CollectiveCategory = "provider"
	CategoryRegulation CollectiveCategory = "regulation"
	CategoryTip        CollectiveCategory = "tip"
	CategoryPricing    CollectiveCategory = "pricing"
	CategoryTimeline   CollectiveCategory = "timeline"
	CategoryGeneral    CollectiveCategory = "general"
)

// PromotionThreshold is the default distinct-contributor count required for
// promotion; internal/config.CoreSettings.PromotionThreshold overrides it at
// runtime, this constant documents the spec default.
const PromotionThreshold = 3

// MinConfidence is the floor below which a CollectiveFact is deleted.
const MinConfidence = 0.2

// CollectiveFact is a fact confirmed by >= N distinct contributors.
type CollectiveFact struct {
	ID               string
	Content          string
	Category         CollectiveCategory
	Confidence       float64
	SourceCount      int
	Promoted         bool
	FirstLearnedAt   time.Time
	LastConfirmedAt  time.Time
	ContentHash      string // sha256 of normalized lowercase content
	EmbeddingSynced  bool
	Metadata         map[string]any
}

// Invariant reports whether the fact satisfies the promotion/confidence
// invariants from the specification. It does not mutate the fact; callers
// use it to detect invariant violations for logging per spec §7.
func (f *CollectiveFact) Invariant(threshold int) bool {
	if f.Promoted != (f.SourceCount >= threshold) {
		return false
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return false
	}
	return true
}

// SourceAction enumerates CollectiveFactSource actions.
type SourceAction string

const (
	ActionContribute SourceAction = "contribute"
	ActionConfirm    SourceAction = "confirm"
	ActionRefute     SourceAction = "refute"
)

// CollectiveFactSource is an audit entry; uniqueness of
// (FactID, UserID, Action) is enforced at the relational store layer.
type CollectiveFactSource struct {
	FactID        string
	UserID        string
	Action        SourceAction
	ContributedAt time.Time
}

// MaxParentDocChars bounds ParentDocument.FullText.
const MaxParentDocChars = 50_000

// ParentDocument is the pre-chunking full text of a source document.
type ParentDocument struct {
	ID         string
	DocumentID string
	Title      string
	DocType    string
	FullText   string
	CharCount  int
	ChunkCount int
	Metadata   map[string]any
}

// RetrievedChunk is an ephemeral retrieval result.
type RetrievedChunk struct {
	Text           string
	SourceDocID    string
	CollectionName string
	Language       string
	ParentID       string
	Score          float64
	RerankedScore  float64
}

// MessageRole enumerates Conversation message roles.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ConversationMessage is one turn of a Conversation transcript.
type ConversationMessage struct {
	Role      MessageRole
	Content   string
	ToolCalls []ToolCallRecord
	At        time.Time
}

// ToolCallRecord records one dispatched tool invocation within a turn.
type ToolCallRecord struct {
	ToolName string
	Args     map[string]any
	Result   string
}

// Conversation is a session's ordered transcript.
type Conversation struct {
	SessionID string
	UserID    string
	Messages  []ConversationMessage
}

// AnonymousUserID is used when the edge layer did not populate a user; the
// core then skips persistence entirely (spec §3 invariant).
const AnonymousUserID = "anonymous"

// JourneyStepStatus enumerates JourneyStep/JourneyProgress status.
type JourneyStepStatus string

const (
	StepPending    JourneyStepStatus = "pending"
	StepInProgress JourneyStepStatus = "in_progress"
	StepCompleted  JourneyStepStatus = "completed"
	StepBlocked    JourneyStepStatus = "blocked"
	StepSkipped    JourneyStepStatus = "skipped"
)

// JourneyStep is one step in a JourneyTemplate's DAG.
type JourneyStep struct {
	ID               string
	Name             string
	Prerequisites    []string // step ids within the same journey
	RequiredDocs     []string
	EstimatedDays    int
}

// JourneyTemplate is a multi-step workflow definition, e.g. "PT PMA setup".
type JourneyTemplate struct {
	ID    string
	Name  string
	Steps []JourneyStep
}

// StepProgress tracks one step's status within a running Journey.
type StepProgress struct {
	StepID string
	Status JourneyStepStatus
}

// Journey tracks per-client progress against a JourneyTemplate.
type Journey struct {
	ID                 string
	TemplateID         string
	ClientID           string
	StartedAt          time.Time
	Steps              []StepProgress
	EstimatedCompletion time.Time
	ActualCompletion    *time.Time
}
