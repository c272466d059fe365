package jsonvalue

import "testing"

// TestResolveConfiguration_MergeResetCycle reproduces spec.md §8 scenario 3 end to end.
func TestResolveConfiguration_MergeResetCycle(t *testing.T) {
	defaults := NewObject().
		ObjectSet("singleLevelKey", NewString("default value of singleLevelKey")).
		ObjectSet("listKey", NewArray(NewString("item1"), NewString("item2")))

	merge, err := FromJSON([]byte(`{
		"singleLevelKey": "updated value of singleLevelKey",
		"listKey": ["item3"],
		"path": {"leafKey": "updated value of /path/leafKey"},
		"newSingleLevelKey": "value of newSingleLevelKey"
	}`))
	if err != nil {
		t.Fatalf("parse merge tree: %v", err)
	}

	resolved := ResolveConfiguration(nil, defaults, nil, merge, nil)

	assertStringAt(t, resolved, "/singleLevelKey", "updated value of singleLevelKey")
	assertStringAt(t, resolved, "/listKey/0", "item3")

	if items := resolved.mustArray(t, "/listKey"); len(items) != 1 {
		t.Fatalf("expected listKey replaced wholesale with 1 item, got %d", len(items))
	}

	// RESET ["/newSingleLevelKey", "/path/newLeafKey"] removes both keys
	// (the second pointer addresses a key absent from both the resolved
	// tree and the defaults, so it is simply a no-op removal).
	var logs []string
	resolved = Reset(resolved, defaults, "/newSingleLevelKey", func(p, r string) { logs = append(logs, p+": "+r) })
	resolved = Reset(resolved, defaults, "/path/newLeafKey", func(p, r string) { logs = append(logs, p+": "+r) })

	if _, ok := resolved.ObjectGet("newSingleLevelKey"); ok {
		t.Fatalf("newSingleLevelKey should have been removed by reset")
	}
	if path, ok := resolved.ObjectGet("path"); ok {
		if _, ok := path.ObjectGet("newLeafKey"); ok {
			t.Fatalf("path/newLeafKey should have been removed by reset")
		}
	}

	// RESET [""] reverts everything to defaults exactly.
	resolved = Reset(resolved, defaults, "", nil)
	if !Equal(resolved, defaults) {
		t.Fatalf("whole-document reset did not restore exact defaults")
	}
}

func TestReset_ArrayElementDisallowed(t *testing.T) {
	defaults := NewObject().ObjectSet("listKey", NewArray(NewString("a"), NewString("b")))
	current := defaults.Clone()
	var reason string
	out := Reset(current, defaults, "/listKey/0", func(p, r string) { reason = r })
	if !Equal(out, current) {
		t.Fatalf("array-element reset must be a no-op")
	}
	if reason == "" {
		t.Fatalf("expected a logged reason for the rejected array-element reset")
	}
}

func TestDeepMerge_ListsReplaceWholesale(t *testing.T) {
	original := NewObject().ObjectSet("k", NewArray(NewString("a"), NewString("b"), NewString("c")))
	incoming := NewObject().ObjectSet("k", NewArray(NewString("z")))
	merged := DeepMerge(original, incoming)
	items := merged.mustArray(t, "/k")
	if len(items) != 1 {
		t.Fatalf("expected wholesale list replacement, got %d items", len(items))
	}
}

func TestDeepMerge_ExplicitNullReplaces(t *testing.T) {
	original := NewObject().ObjectSet("k", NewString("value"))
	incoming := NewObject().ObjectSet("k", NewNull())
	merged := DeepMerge(original, incoming)
	child, ok := merged.ObjectGet("k")
	if !ok || !child.IsNull() {
		t.Fatalf("explicit null must replace the existing value")
	}
}

func TestRoundTrip(t *testing.T) {
	v, err := FromJSON([]byte(`{"a":1,"b":[true,null,"x"],"c":{"d":2.5}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := v.ToJSON()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	reparsed, err := FromJSON(data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !Equal(v, reparsed) {
		t.Fatalf("round trip did not produce an identical tree")
	}
}

// --- test helpers ---

func assertStringAt(t *testing.T, v *Value, pointer, want string) {
	t.Helper()
	child, ok := Get(v, ParsePointer(pointer))
	if !ok {
		t.Fatalf("no value at %s", pointer)
	}
	got, isStr := child.StringValue()
	if !isStr || got != want {
		t.Fatalf("at %s: want %q, got %q (isStr=%v)", pointer, want, got, isStr)
	}
}

func (v *Value) mustArray(t *testing.T, pointer string) []*Value {
	t.Helper()
	child, ok := Get(v, ParsePointer(pointer))
	if !ok || !child.IsArray() {
		t.Fatalf("expected array at %s", pointer)
	}
	return child.ArrayItems()
}
