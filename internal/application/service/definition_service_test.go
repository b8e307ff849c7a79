package service

import (
	"context"
	"testing"
	"time"

	"github.com/approvalflow/engine/internal/domain/workflow"
)

func TestDefinitionService_Create(t *testing.T) {
	var created *workflow.Definition
	defRepo := &mockDefinitionRepo{
		createFunc: func(ctx context.Context, def *workflow.Definition) error {
			created = def
			return nil
		},
	}

	svc := NewDefinitionService(defRepo, &mockCache{}, nopLogger{})
	def, err := svc.Create(context.Background(), "tenant-1", "alice", "Purchasing", "orders", testGraph())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if def.Status != workflow.DefinitionStatusDraft {
		t.Errorf("status = %v, want draft", def.Status)
	}
	if created == nil || created.ID != def.ID {
		t.Error("definition was not persisted")
	}
}

func TestDefinitionService_Create_AcceptsInvalidGraph(t *testing.T) {
	// Drafts may hold invalid graphs; validity is enforced at publish.
	broken := workflow.NewGraph([]workflow.StepSpec{{ID: "a", Kind: workflow.StepKindApproval}}, nil)

	svc := NewDefinitionService(&mockDefinitionRepo{}, &mockCache{}, nopLogger{})
	if _, err := svc.Create(context.Background(), "tenant-1", "alice", "Broken", "", broken); err != nil {
		t.Errorf("Create() with invalid graph failed: %v", err)
	}
}

func TestDefinitionService_Publish(t *testing.T) {
	def := workflow.NewDefinition("tenant-1", "Purchasing", "", "alice", testGraph(), time.Now())

	var updated, cached *workflow.Definition
	defRepo := &mockDefinitionRepo{
		getByIDFunc: func(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
			return def, nil
		},
		updateFunc: func(ctx context.Context, d *workflow.Definition) error {
			updated = d
			return nil
		},
	}
	cache := &mockCache{
		setFunc: func(ctx context.Context, d *workflow.Definition) error {
			cached = d
			return nil
		},
	}

	svc := NewDefinitionService(defRepo, cache, nopLogger{})
	published, verrs, err := svc.Publish(context.Background(), "tenant-1", def.ID)
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if len(verrs) != 0 {
		t.Fatalf("Publish() validation errors = %v, want none", verrs)
	}
	if published.Status != workflow.DefinitionStatusPublished {
		t.Errorf("status = %v, want published", published.Status)
	}
	if updated == nil {
		t.Error("published definition was not persisted")
	}
	if cached == nil {
		t.Error("published definition was not cached")
	}
}

func TestDefinitionService_Publish_InvalidGraphStaysDraft(t *testing.T) {
	broken := workflow.NewGraph([]workflow.StepSpec{{ID: "a", Kind: workflow.StepKindApproval}}, nil)
	def := workflow.NewDefinition("tenant-1", "Broken", "", "alice", broken, time.Now())

	defRepo := &mockDefinitionRepo{
		getByIDFunc: func(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
			return def, nil
		},
		updateFunc: func(ctx context.Context, d *workflow.Definition) error {
			t.Error("Update must not be called when validation rejects the graph")
			return nil
		},
	}

	svc := NewDefinitionService(defRepo, &mockCache{}, nopLogger{})
	published, verrs, err := svc.Publish(context.Background(), "tenant-1", def.ID)
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if len(verrs) == 0 {
		t.Fatal("Publish() accepted an invalid graph")
	}
	if published != nil {
		t.Error("rejected publish must not return a definition")
	}
	if def.Status != workflow.DefinitionStatusDraft {
		t.Errorf("status = %v, want draft", def.Status)
	}
}

func TestDefinitionService_Validate_MatchesPublish(t *testing.T) {
	broken := workflow.NewGraph([]workflow.StepSpec{{ID: "a", Kind: workflow.StepKindApproval}}, nil)
	def := workflow.NewDefinition("tenant-1", "Broken", "", "alice", broken, time.Now())

	defRepo := &mockDefinitionRepo{
		getByIDFunc: func(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
			return def, nil
		},
	}

	svc := NewDefinitionService(defRepo, &mockCache{}, nopLogger{})
	verrs, err := svc.Validate(context.Background(), "tenant-1", def.ID)
	if err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	_, pubErrs, err := svc.Publish(context.Background(), "tenant-1", def.ID)
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if len(verrs) != len(pubErrs) {
		t.Errorf("Validate() found %d errors, Publish() %d; they must agree", len(verrs), len(pubErrs))
	}
}

func TestDefinitionService_Archive_InvalidatesCache(t *testing.T) {
	def := workflow.NewDefinition("tenant-1", "Purchasing", "", "alice", testGraph(), time.Now())
	if _, err := def.Publish(time.Now()); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	var invalidated string
	defRepo := &mockDefinitionRepo{
		getByIDFunc: func(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
			return def, nil
		},
	}
	cache := &mockCache{
		invalidateFunc: func(ctx context.Context, tenantID, id string) error {
			invalidated = id
			return nil
		},
	}

	svc := NewDefinitionService(defRepo, cache, nopLogger{})
	archived, err := svc.Archive(context.Background(), "tenant-1", def.ID)
	if err != nil {
		t.Fatalf("Archive() failed: %v", err)
	}
	if archived.Status != workflow.DefinitionStatusArchived {
		t.Errorf("status = %v, want archived", archived.Status)
	}
	if invalidated != def.ID {
		t.Errorf("cache invalidated id = %q, want %q", invalidated, def.ID)
	}
}

func TestDefinitionService_Update_PublishedFails(t *testing.T) {
	def := workflow.NewDefinition("tenant-1", "Purchasing", "", "alice", testGraph(), time.Now())
	if _, err := def.Publish(time.Now()); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	defRepo := &mockDefinitionRepo{
		getByIDFunc: func(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
			return def, nil
		},
	}

	svc := NewDefinitionService(defRepo, &mockCache{}, nopLogger{})
	if _, err := svc.Update(context.Background(), "tenant-1", def.ID, "Other", "", testGraph()); err != workflow.ErrDefinitionNotDraft {
		t.Errorf("err = %v, want %v", err, workflow.ErrDefinitionNotDraft)
	}
}
