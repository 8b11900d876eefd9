package registry

import "testing"

func TestBrokerDeniesWhenNoHandlerOrToggleSet(t *testing.T) {
	b := NewBroker()
	result := b.Confirm(ConfirmationRequest{Actions: []ConfirmationAction{{Tool: "rm"}}})
	if result.Type != ConfirmDenyAll {
		t.Fatalf("expected fail-safe denial, got %v", result.Type)
	}
}

func TestBrokerApproveAllToggleShortCircuitsHandler(t *testing.T) {
	b := NewBroker()
	b.SetHandler(func(req ConfirmationRequest) ConfirmationResult {
		t.Fatal("handler should not be reached once ApproveAll is set")
		return ConfirmationResult{}
	})
	b.SetApproveAll(true)

	result := b.Confirm(ConfirmationRequest{Actions: []ConfirmationAction{{Tool: "rm"}}})
	if result.Type != ConfirmApproveAll {
		t.Fatalf("expected ConfirmApproveAll, got %v", result.Type)
	}
}

func TestBrokerDenyAllToggleShortCircuitsHandler(t *testing.T) {
	b := NewBroker()
	b.SetHandler(func(req ConfirmationRequest) ConfirmationResult {
		t.Fatal("handler should not be reached once DenyAll is set")
		return ConfirmationResult{}
	})
	b.SetDenyAll(true)

	result := b.Confirm(ConfirmationRequest{Actions: []ConfirmationAction{{Tool: "rm"}}})
	if result.Type != ConfirmDenyAll {
		t.Fatalf("expected ConfirmDenyAll, got %v", result.Type)
	}
}

func TestBrokerDelegatesToHandlerWhenNoToggleSet(t *testing.T) {
	b := NewBroker()
	called := false
	b.SetHandler(func(req ConfirmationRequest) ConfirmationResult {
		called = true
		return ConfirmationResult{Type: ConfirmPartial, SelectedIndex: 1}
	})

	result := b.Confirm(ConfirmationRequest{Actions: []ConfirmationAction{{Tool: "a"}, {Tool: "b"}}})
	if !called {
		t.Fatal("expected the installed handler to be called")
	}
	if result.Type != ConfirmPartial || result.SelectedIndex != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
