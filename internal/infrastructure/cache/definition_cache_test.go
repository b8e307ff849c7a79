package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/approvalflow/engine/internal/domain/workflow"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (*DefinitionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewDefinitionCache(client, time.Hour, zap.NewNop()).(*DefinitionCache)
	return c, mr
}

func publishedDefinition(t *testing.T) *workflow.Definition {
	t.Helper()
	g := workflow.NewGraph(
		[]workflow.StepSpec{
			{ID: "start", Kind: workflow.StepKindStart},
			{ID: "manager", Name: "Manager Approval", Kind: workflow.StepKindApproval},
			{ID: "done", Kind: workflow.StepKindEnd, EndStatus: workflow.EndStatusApproved},
			{ID: "denied", Kind: workflow.StepKindEnd, EndStatus: workflow.EndStatusRejected},
		},
		[]workflow.TransitionSpec{
			{From: "start", To: "manager"},
			{From: "manager", To: "done", Trigger: workflow.TriggerApprove},
			{From: "manager", To: "denied", Trigger: workflow.TriggerReject},
		},
	)
	def := workflow.NewDefinition("tenant-1", "Purchasing", "", "alice", g, time.Now().UTC())
	if verrs, err := def.Publish(time.Now().UTC()); err != nil || len(verrs) != 0 {
		t.Fatalf("publish failed: %v / %v", verrs, err)
	}
	return def
}

func TestDefinitionCache_RoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	def := publishedDefinition(t)
	ctx := context.Background()

	if err := c.Set(ctx, def); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, err := c.Get(ctx, def.TenantID, def.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned a miss after Set()")
	}
	if got.ID != def.ID || got.Status != workflow.DefinitionStatusPublished {
		t.Errorf("cached definition = %s/%s, want %s/published", got.ID, got.Status, def.ID)
	}

	// The graph must come back queryable, not just as raw data.
	target, ok := got.Graph.Follow("manager", workflow.TriggerApprove)
	if !ok || target.ID != "done" {
		t.Errorf("cached graph Follow(manager, approve) = %v/%v, want done", target.ID, ok)
	}
}

func TestDefinitionCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.Get(context.Background(), "tenant-1", "nope")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %v, want miss", got)
	}
}

func TestDefinitionCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)
	def := publishedDefinition(t)
	ctx := context.Background()

	if err := c.Set(ctx, def); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := c.Invalidate(ctx, def.TenantID, def.ID); err != nil {
		t.Fatalf("Invalidate() failed: %v", err)
	}

	got, err := c.Get(ctx, def.TenantID, def.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != nil {
		t.Error("Get() after Invalidate() should miss")
	}
}

func TestDefinitionCache_CorruptEntryBehavesLikeMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	mr.Set("wf:def:tenant-1:bad", "{not json")

	got, err := c.Get(ctx, "tenant-1", "bad")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %v, want miss for corrupt entry", got)
	}
}

func TestDefinitionCache_TenantIsolation(t *testing.T) {
	c, _ := newTestCache(t)
	def := publishedDefinition(t)
	ctx := context.Background()

	if err := c.Set(ctx, def); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, err := c.Get(ctx, "tenant-2", def.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got != nil {
		t.Error("definition leaked across tenants")
	}
}
