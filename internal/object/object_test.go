package object

import (
	"testing"

	"github.com/roach88/strata/internal/oid"
)

func TestState_Transitions(t *testing.T) {
	obj := &stubObject{}
	if obj.State() != StateNew {
		t.Fatalf("fresh object state = %v, want new", obj.State())
	}

	// NEW -> UP_TO_DATE on first store.
	obj.SetState(StateUpToDate)

	// UP_TO_DATE -> MODIFIED on mutation.
	obj.MarkModified()
	if obj.State() != StateModified {
		t.Errorf("state after mutation = %v, want modified", obj.State())
	}

	// MODIFIED -> UP_TO_DATE on store.
	obj.SetState(StateUpToDate)
	if obj.State() != StateUpToDate {
		t.Errorf("state after store = %v, want up-to-date", obj.State())
	}
}

func TestMarkModified_NotifiesOnce(t *testing.T) {
	obj := &stubObject{}
	notified := 0
	obj.Bind("owner", func() { notified++ })
	obj.SetState(StateUpToDate)

	obj.MarkModified()
	obj.MarkModified() // already modified, no second notification
	if notified != 1 {
		t.Errorf("dirty notifications = %d, want 1", notified)
	}
}

func TestMarkModified_NewStaysNew(t *testing.T) {
	obj := &stubObject{}
	notified := 0
	obj.Bind("owner", func() { notified++ })

	obj.MarkModified()
	if obj.State() != StateNew {
		t.Errorf("mutating a new object changed state to %v", obj.State())
	}
	if notified != 0 {
		t.Error("a new object is already pending, it must not re-notify")
	}
}

func TestSetOID_Immutable(t *testing.T) {
	obj := &stubObject{}
	id := oid.Random()
	obj.SetOID(id)
	obj.SetOID(id) // same value is fine

	defer func() {
		if recover() == nil {
			t.Error("reassigning a different oid should panic")
		}
	}()
	obj.SetOID(oid.Random())
}

func TestBind_Owner(t *testing.T) {
	obj := &stubObject{}
	if obj.Owner() != nil {
		t.Error("fresh object should be unowned")
	}
	obj.Bind("db-1", nil)
	if obj.Owner() != "db-1" {
		t.Errorf("owner = %v", obj.Owner())
	}
}
