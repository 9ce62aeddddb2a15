package stage_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/contract"
	"github.com/xraph/conduit/policy"
	"github.com/xraph/conduit/stage"
)

func noopBuild(*stage.Scope) (contract.Payload, error) {
	return contract.Payload{}, nil
}

func namedStage(name string) stage.Stage {
	return stage.Invoke(name, "noop", time.Minute, policy.Single(), noopBuild)
}

func TestDefinition_Validate(t *testing.T) {
	cases := []struct {
		name string
		def  stage.Definition
		ok   bool
	}{
		{
			name: "valid",
			def:  stage.Definition{Name: "p", Stages: []stage.Stage{namedStage("a"), namedStage("b")}},
			ok:   true,
		},
		{
			name: "no name",
			def:  stage.Definition{Stages: []stage.Stage{namedStage("a")}},
		},
		{
			name: "no stages",
			def:  stage.Definition{Name: "p"},
		},
		{
			name: "duplicate stage name",
			def:  stage.Definition{Name: "p", Stages: []stage.Stage{namedStage("a"), namedStage("a")}},
		},
		{
			name: "empty stage name",
			def:  stage.Definition{Name: "p", Stages: []stage.Stage{namedStage("")}},
		},
		{
			name: "missing builder",
			def: stage.Definition{Name: "p", Stages: []stage.Stage{
				{Name: "a", Contract: "noop", Timeout: time.Minute, Policy: policy.Single()},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			if tc.ok {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, conduit.ErrEmptyDefinition) {
				t.Fatalf("Validate() = %v, want ErrEmptyDefinition", err)
			}
		})
	}
}

func TestStage_WhenAndBestEffortCopy(t *testing.T) {
	base := namedStage("email")

	gated := base.When(func(s *stage.Scope) bool { return false }).BestEffort()

	if base.Condition != nil || base.Optional {
		t.Fatal("builders must not mutate the original stage")
	}
	if gated.Condition == nil || !gated.Optional {
		t.Fatal("When/BestEffort must set condition and optional on the copy")
	}
}

func TestScope_Outputs(t *testing.T) {
	s := stage.NewScope(contract.Payload{"dataset_id": "orders"})

	if got := s.Input()["dataset_id"]; got != "orders" {
		t.Fatalf("Input()[dataset_id] = %v, want orders", got)
	}
	if s.Completed("process") {
		t.Fatal("stage completed before any output recorded")
	}
	if _, ok := s.Output("process"); ok {
		t.Fatal("Output reported a value before any output recorded")
	}

	s.SetOutput("process", contract.Payload{"record_count": 3})

	if !s.Completed("process") {
		t.Fatal("stage not completed after SetOutput")
	}
	if got := s.MustOutput("process")["record_count"]; got != 3 {
		t.Fatalf("MustOutput()[record_count] = %v, want 3", got)
	}
}

func TestScope_MustOutputPanicsOnMissingStage(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("MustOutput did not panic for a missing stage")
		}
	}()
	stage.NewScope(contract.Payload{}).MustOutput("missing")
}
