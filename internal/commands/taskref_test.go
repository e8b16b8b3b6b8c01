package commands

import (
	"testing"

	"cloudtodo/internal/service"
)

func TestParseTaskRef_Numeric(t *testing.T) {
	num, err := ParseTaskRef([]string{"5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != 5 {
		t.Errorf("expected 5, got %d", num)
	}
}

func TestParseTaskRef_NoArgs_Error(t *testing.T) {
	_, err := ParseTaskRef(nil)
	if err != ErrTaskRefRequired {
		t.Errorf("expected ErrTaskRefRequired, got %v", err)
	}
}

func TestParseTaskRef_Invalid_Error(t *testing.T) {
	tests := []string{"a1", "x", "-1", "1.5", "１"}
	for _, ref := range tests {
		if _, err := ParseTaskRef([]string{ref}); err == nil {
			t.Errorf("expected error for %q", ref)
		}
	}
}

func TestParseTaskRef_ExtraArgument_Error(t *testing.T) {
	_, err := ParseTaskRef([]string{"1", "2"})
	if err == nil || err.Error() != "unexpected argument: 2" {
		t.Errorf("expected unexpected argument error, got %v", err)
	}
}

func TestTaskAt(t *testing.T) {
	tasks := []service.Task{{ID: "b"}, {ID: "a"}}

	task, err := taskAt(tasks, 2)
	if err != nil || task.ID != "a" {
		t.Errorf("expected task a, got %+v %v", task, err)
	}
	for _, n := range []int{0, 3} {
		_, err := taskAt(tasks, n)
		if service.KindOf(err) != service.KindValidation {
			t.Errorf("taskAt(%d): expected validation error, got %v", n, err)
		}
	}
}
