package registry

import (
	"context"
	"encoding/json"
	"testing"
)

func safeTool(name string) Tool {
	return Tool{
		Name: name,
		Execute: func(ctx context.Context, args json.RawMessage) (Result, error) {
			return Result{Success: true, Output: "ran " + name}, nil
		},
	}
}

func dangerousTool(name string, prompt string) Tool {
	return Tool{
		Name:      name,
		Dangerous: prompt,
		Execute: func(ctx context.Context, args json.RawMessage) (Result, error) {
			return Result{Success: true, Output: "ran " + name}, nil
		},
	}
}

func TestExecuteBatchRunsSafeCallsWithoutConfirmation(t *testing.T) {
	broker := NewBroker()
	broker.SetHandler(func(req ConfirmationRequest) ConfirmationResult {
		t.Fatal("handler should not be called for an all-safe batch")
		return ConfirmationResult{Type: ConfirmDenyAll}
	})
	r := New(broker)
	if err := r.Register(safeTool("list_directory")); err != nil {
		t.Fatal(err)
	}

	results := r.ExecuteBatch(context.Background(), []Call{{ID: "1", Name: "list_directory"}})
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("expected a successful result, got %+v", results)
	}
}

// TestExecuteBatchUnknownToolShortCircuits covers a call for a name that
// was never registered: it must fail its own slot without touching the
// broker or blocking the rest of the batch.
func TestExecuteBatchUnknownToolShortCircuits(t *testing.T) {
	r := New(NewBroker())
	if err := r.Register(safeTool("known")); err != nil {
		t.Fatal(err)
	}

	results := r.ExecuteBatch(context.Background(), []Call{
		{ID: "1", Name: "known"},
		{ID: "2", Name: "unknown_tool"},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Success {
		t.Fatalf("expected the known tool to succeed, got %+v", results[0])
	}
	if results[1].Success || results[1].Error == "" {
		t.Fatalf("expected the unknown tool to fail with an error, got %+v", results[1])
	}
}

// TestExecuteBatchDangerousCallNeedsOneConfirmation covers invariant I3: a
// batch of dangerous calls is presented to the broker as a single request,
// not one confirmation per call.
func TestExecuteBatchDangerousCallNeedsOneConfirmation(t *testing.T) {
	broker := NewBroker()
	requestCount := 0
	var seenActions int
	broker.SetHandler(func(req ConfirmationRequest) ConfirmationResult {
		requestCount++
		seenActions = len(req.Actions)
		return ConfirmationResult{Type: ConfirmApproveAll}
	})
	r := New(broker)
	if err := r.Register(dangerousTool("rm_file", "Delete a file")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(dangerousTool("rm_other", "Delete another file")); err != nil {
		t.Fatal(err)
	}

	results := r.ExecuteBatch(context.Background(), []Call{
		{ID: "1", Name: "rm_file"},
		{ID: "2", Name: "rm_other"},
	})
	if requestCount != 1 {
		t.Fatalf("expected exactly one confirmation request for the whole batch, got %d", requestCount)
	}
	if seenActions != 2 {
		t.Fatalf("expected the single request to bundle both dangerous calls, got %d actions", seenActions)
	}
	for _, res := range results {
		if !res.Success {
			t.Fatalf("expected both calls to run after approval, got %+v", results)
		}
	}
}

func TestExecuteBatchDenyAllBlocksDangerousCalls(t *testing.T) {
	broker := NewBroker()
	broker.SetHandler(func(req ConfirmationRequest) ConfirmationResult {
		return ConfirmationResult{Type: ConfirmDenyAll}
	})
	r := New(broker)
	if err := r.Register(dangerousTool("rm_file", "Delete a file")); err != nil {
		t.Fatal(err)
	}

	results := r.ExecuteBatch(context.Background(), []Call{{ID: "1", Name: "rm_file"}})
	if results[0].Success {
		t.Fatal("expected the call to be denied, not run")
	}
	if results[0].Error != "User declined confirmation" {
		t.Fatalf("unexpected denial message: %q", results[0].Error)
	}
}

// TestExecuteBatchPartialApprovalRunsOnlySelected covers the
// ConfirmPartial path: only the selected index in the dangerous-call
// sub-batch runs, the rest are declined even though they were submitted as
// part of the same request.
func TestExecuteBatchPartialApprovalRunsOnlySelected(t *testing.T) {
	broker := NewBroker()
	broker.SetHandler(func(req ConfirmationRequest) ConfirmationResult {
		return ConfirmationResult{Type: ConfirmPartial, SelectedIndex: 0}
	})
	r := New(broker)
	if err := r.Register(dangerousTool("rm_a", "Delete a")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(dangerousTool("rm_b", "Delete b")); err != nil {
		t.Fatal(err)
	}

	results := r.ExecuteBatch(context.Background(), []Call{
		{ID: "1", Name: "rm_a"},
		{ID: "2", Name: "rm_b"},
	})
	if !results[0].Success {
		t.Fatalf("expected the selected call to run, got %+v", results[0])
	}
	if results[1].Success {
		t.Fatalf("expected the non-selected call to be declined, got %+v", results[1])
	}
}

// TestExecuteBatchNoBrokerFailsSafe covers the denyAllBroker fallback: a
// Registry with no broker installed must deny dangerous calls rather than
// silently running them.
func TestExecuteBatchNoBrokerFailsSafe(t *testing.T) {
	r := New(nil)
	if err := r.Register(dangerousTool("rm_file", "Delete a file")); err != nil {
		t.Fatal(err)
	}

	results := r.ExecuteBatch(context.Background(), []Call{{ID: "1", Name: "rm_file"}})
	if results[0].Success {
		t.Fatal("expected a Registry with no broker to deny dangerous calls")
	}
}

func TestDangerFuncEvaluatesPerCallArguments(t *testing.T) {
	r := New(NewBroker())
	if err := r.Register(Tool{
		Name: "bash",
		Dangerous: DangerFunc(func(args json.RawMessage) (bool, string) {
			var a struct{ Command string }
			_ = json.Unmarshal(args, &a)
			return a.Command == "rm -rf /", "run " + a.Command
		}),
		Execute: func(ctx context.Context, args json.RawMessage) (Result, error) {
			return Result{Success: true}, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	if dangerous, _ := r.GetDangerLevel("bash", json.RawMessage(`{"Command":"ls"}`)); dangerous {
		t.Fatal("expected a harmless command to not be flagged dangerous")
	}
	dangerous, prompt := r.GetDangerLevel("bash", json.RawMessage(`{"Command":"rm -rf /"}`))
	if !dangerous {
		t.Fatal("expected the destructive command to be flagged dangerous")
	}
	if prompt != "run rm -rf /" {
		t.Fatalf("unexpected prompt: %q", prompt)
	}
}

func TestRestrictToLimitsListAndSchemas(t *testing.T) {
	r := New(NewBroker())
	if err := r.Register(safeTool("read_file")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(safeTool("bash")); err != nil {
		t.Fatal(err)
	}

	r.RestrictTo([]string{"read_file"})
	if got := r.Schemas(); len(got) != 1 || got[0].Name != "read_file" {
		t.Fatalf("expected only read_file advertised, got %+v", got)
	}
	// Restriction governs advertisement, not execution.
	if _, ok := r.Get("bash"); !ok {
		t.Fatal("expected Get to still find the restricted tool")
	}

	r.ClearRestriction()
	if got := r.Schemas(); len(got) != 2 {
		t.Fatalf("expected both tools advertised after clearing restriction, got %d", len(got))
	}
}

func TestSnapshotExcludesNamedTools(t *testing.T) {
	r := New(NewBroker())
	if err := r.Register(safeTool("read_file")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(safeTool("sub_agent")); err != nil {
		t.Fatal(err)
	}

	snap := r.Snapshot(map[string]struct{}{"sub_agent": {}})
	if _, ok := snap.Get("sub_agent"); ok {
		t.Fatal("expected sub_agent to be excluded from the snapshot")
	}
	if _, ok := snap.Get("read_file"); !ok {
		t.Fatal("expected read_file to carry over into the snapshot")
	}

	// The snapshot's own restriction state must be independent of the parent's.
	r.RestrictTo([]string{"sub_agent"})
	if len(snap.Schemas()) == 0 {
		t.Fatal("expected the snapshot's schemas to be unaffected by the parent's restriction")
	}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := New(NewBroker())
	if err := r.Register(safeTool("bash")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(safeTool("bash")); err == nil {
		t.Fatal("expected registering a duplicate tool name to fail")
	}
}
