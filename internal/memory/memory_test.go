package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/relstore"
)

func TestContentHashNormalizesCaseAndWhitespace(t *testing.T) {
	a := contentHash("  KITAS Renewal Takes 2 Weeks  ")
	b := contentHash("kitas renewal takes 2 weeks")
	if a != b {
		t.Errorf("contentHash() not normalized: %q != %q", a, b)
	}
}

func TestContentHashDiffersOnDifferentContent(t *testing.T) {
	if contentHash("fact one") == contentHash("fact two") {
		t.Error("contentHash() collided for distinct content")
	}
}

func TestGetUserContextAnonymousSkipsPersistence(t *testing.T) {
	s := New(nil, nil, nil, nil, nil, Config{})

	ctx, err := s.GetUserContext(context.Background(), domain.AnonymousUserID)
	if err != nil {
		t.Fatalf("GetUserContext: %v", err)
	}
	if ctx.HasData {
		t.Error("GetUserContext(anonymous) has data, want empty")
	}

	ctx2, err := s.GetUserContext(context.Background(), "")
	if err != nil {
		t.Fatalf("GetUserContext: %v", err)
	}
	if ctx2.HasData {
		t.Error("GetUserContext(empty userID) has data, want empty")
	}
}

func TestProcessConversationSkipsWithNoExtractor(t *testing.T) {
	s := New(nil, nil, nil, nil, nil, Config{})
	result, err := s.ProcessConversation(context.Background(), "user-1", "hi", "hello")
	if err != nil {
		t.Fatalf("ProcessConversation: %v", err)
	}
	if result.FactsExtracted != 0 || result.FactsSaved != 0 {
		t.Errorf("ProcessConversation() = %+v, want zero result", result)
	}
}

func TestProcessConversationSkipsAnonymousUser(t *testing.T) {
	s := New(nil, nil, nil, stubExtractor{facts: []ExtractedFact{{Content: "fact", Type: domain.FactGeneral, Confidence: 0.9}}}, nil, Config{})
	result, err := s.ProcessConversation(context.Background(), domain.AnonymousUserID, "hi", "hello")
	if err != nil {
		t.Fatalf("ProcessConversation: %v", err)
	}
	if result.FactsExtracted != 0 {
		t.Errorf("ProcessConversation(anonymous) = %+v, want zero result", result)
	}
}

type stubExtractor struct {
	facts []ExtractedFact
	err   error
}

func (s stubExtractor) ExtractFacts(ctx context.Context, userMessage, assistantResponse string) ([]ExtractedFact, error) {
	return s.facts, s.err
}

// newTestStore boots a disposable postgres:16-alpine container, migrates it
// with relstore's embedded schema, and returns a ready *relstore.Store.
// AddCollectiveContribution/RefuteFact drive promotion-rule arithmetic
// entirely inside a pgx.Tx with a FOR UPDATE row lock, so a hand-written
// RelStore mock can't stand in for them the way it can for simpler
// single-statement callers — a real database is the only honest way to
// exercise the transaction.
func newTestStore(t *testing.T) *relstore.Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("agentcore_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, relstore.Migrate(dsn))

	store, err := relstore.New(ctx, &relstore.Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return store
}

func TestAddCollectiveContributionCreatesAtHalfConfidence(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil, nil, nil, nil, Config{})

	result, err := s.AddCollectiveContribution(context.Background(), "user-1", "KITAS renewal takes about 2 weeks", domain.CollectiveCategory("immigration"), nil)
	if err != nil {
		t.Fatalf("AddCollectiveContribution: %v", err)
	}
	if result.Status != statusCreated {
		t.Errorf("Status = %q, want %q", result.Status, statusCreated)
	}
	if result.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5", result.Confidence)
	}
	if result.IsPromoted {
		t.Error("IsPromoted = true, want false for a brand-new fact")
	}
	if result.SourceCount != 1 {
		t.Errorf("SourceCount = %d, want 1", result.SourceCount)
	}
}

func TestAddCollectiveContributionPromotesAtThreshold(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil, nil, nil, nil, Config{})
	ctx := context.Background()
	const content = "PT PMA minimum capital is IDR 10 billion"

	if _, err := s.AddCollectiveContribution(ctx, "user-1", content, domain.CollectiveCategory("legal"), nil); err != nil {
		t.Fatalf("contribution 1: %v", err)
	}
	if _, err := s.AddCollectiveContribution(ctx, "user-2", content, domain.CollectiveCategory("legal"), nil); err != nil {
		t.Fatalf("contribution 2: %v", err)
	}
	result, err := s.AddCollectiveContribution(ctx, "user-3", content, domain.CollectiveCategory("legal"), nil)
	if err != nil {
		t.Fatalf("contribution 3: %v", err)
	}

	if result.Status != statusConfirmed {
		t.Errorf("Status = %q, want %q", result.Status, statusConfirmed)
	}
	if result.SourceCount != domain.PromotionThreshold {
		t.Errorf("SourceCount = %d, want %d", result.SourceCount, domain.PromotionThreshold)
	}
	if !result.IsPromoted {
		t.Error("IsPromoted = false, want true once distinct contributors reach the promotion threshold")
	}
	if result.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 with no refutes", result.Confidence)
	}
}

func TestAddCollectiveContributionAlreadyContributedIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil, nil, nil, nil, Config{})
	ctx := context.Background()
	const content = "NIB registration is done through OSS"

	first, err := s.AddCollectiveContribution(ctx, "user-1", content, domain.CollectiveCategory("business"), nil)
	if err != nil {
		t.Fatalf("first contribution: %v", err)
	}
	second, err := s.AddCollectiveContribution(ctx, "user-1", content, domain.CollectiveCategory("business"), nil)
	if err != nil {
		t.Fatalf("second contribution: %v", err)
	}

	if second.Status != statusAlreadyContributed {
		t.Errorf("Status = %q, want %q", second.Status, statusAlreadyContributed)
	}
	if second.SourceCount != first.SourceCount {
		t.Errorf("SourceCount = %d, want unchanged %d", second.SourceCount, first.SourceCount)
	}
	if second.IsPromoted {
		t.Error("IsPromoted = true, want false — a single contributor never reaches the promotion threshold")
	}
}

func TestRefuteFactRemovesBelowMinConfidence(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil, nil, nil, nil, Config{})
	ctx := context.Background()
	const content = "Visa on arrival is available for all nationalities"

	created, err := s.AddCollectiveContribution(ctx, "user-1", content, domain.CollectiveCategory("immigration"), nil)
	if err != nil {
		t.Fatalf("AddCollectiveContribution: %v", err)
	}

	// 1 positive vs 5 refutes => confidence 1/6 ≈ 0.167, below domain.MinConfidence (0.2).
	refuters := []string{"r1", "r2", "r3", "r4", "r5"}
	var last *RefuteResult
	for _, u := range refuters {
		last, err = s.RefuteFact(ctx, u, created.MemoryID, "incorrect")
		if err != nil {
			t.Fatalf("RefuteFact(%s): %v", u, err)
		}
	}

	if last.Status != statusRemoved {
		t.Errorf("Status = %q, want %q", last.Status, statusRemoved)
	}
	if last.Confidence >= domain.MinConfidence {
		t.Errorf("Confidence = %v, want below MinConfidence %v", last.Confidence, domain.MinConfidence)
	}
}

func TestRefuteFactIsIdempotentPerUser(t *testing.T) {
	store := newTestStore(t)
	s := New(store, nil, nil, nil, nil, Config{})
	ctx := context.Background()
	const content = "Company tax filings are due annually in April"

	created, err := s.AddCollectiveContribution(ctx, "user-1", content, domain.CollectiveCategory("tax"), nil)
	if err != nil {
		t.Fatalf("AddCollectiveContribution: %v", err)
	}

	first, err := s.RefuteFact(ctx, "refuter-1", created.MemoryID, "")
	if err != nil {
		t.Fatalf("first RefuteFact: %v", err)
	}
	if first.Status != statusRefuted {
		t.Fatalf("Status = %q, want %q (1 positive vs 1 refute stays above MinConfidence)", first.Status, statusRefuted)
	}

	second, err := s.RefuteFact(ctx, "refuter-1", created.MemoryID, "")
	if err != nil {
		t.Fatalf("second RefuteFact: %v", err)
	}
	if second.Status != statusAlreadyRefuted {
		t.Errorf("Status = %q, want %q", second.Status, statusAlreadyRefuted)
	}
}
