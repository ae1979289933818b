package fieldvalue

import (
	"reflect"
	"testing"
)

func entries(pairs map[string]string) []Entry {
	out := make([]Entry, 0, len(pairs))
	for k, v := range pairs {
		out = append(out, Entry{Key: ParseKey(k), Value: v})
	}
	return out
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		in      string
		fieldID string
		replica int // -1 for none
	}{
		{"budget", "budget", -1},
		{"contacts__0", "contacts", 0},
		{"contacts__12", "contacts", 12},
		{"weird__name__3", "weird__name", 3},
		{"weird__name", "weird__name", -1}, // suffix not numeric
		{"x__-1", "x__-1", -1},             // negative index is not a replica
	}
	for _, c := range cases {
		k := ParseKey(c.in)
		if k.FieldID != c.fieldID {
			t.Errorf("ParseKey(%q).FieldID = %q, want %q", c.in, k.FieldID, c.fieldID)
		}
		got := -1
		if k.Replica != nil {
			got = *k.Replica
		}
		if got != c.replica {
			t.Errorf("ParseKey(%q).Replica = %d, want %d", c.in, got, c.replica)
		}
		if k.External() != c.in && c.replica >= 0 {
			t.Errorf("External round-trip of %q gave %q", c.in, k.External())
		}
	}
}

func TestResolveValueDirect(t *testing.T) {
	vs := entries(map[string]string{"budget": "1200", "owner": ""})
	if got := ResolveValue("budget", vs); got != "1200" {
		t.Errorf("got %q, want 1200", got)
	}
	if got := ResolveValue("missing", vs); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestGroupFlatteningRoundTrip(t *testing.T) {
	vs := entries(map[string]string{
		"f__0": "A",
		"f__1": "",
		"f__2": "C",
	})
	if got := ResolveValue("f", vs); got != "A, C" {
		t.Errorf("joined value = %q, want %q", got, "A, C")
	}
	if got := ResolveGroupArray("f", vs); !reflect.DeepEqual(got, []string{"A", "", "C"}) {
		t.Errorf("array value = %v, want [A  C]", got)
	}
}

func TestResolveGroupArraySparse(t *testing.T) {
	vs := entries(map[string]string{"g__3": "D"})
	want := []string{"", "", "", "D"}
	if got := ResolveGroupArray("g", vs); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := ReplicaCount("g", vs, 1); got != 4 {
		t.Errorf("ReplicaCount = %d, want 4", got)
	}
	if got := ReplicaCount("absent", vs, 2); got != 2 {
		t.Errorf("ReplicaCount default = %d, want 2", got)
	}
}

func TestDirectMatchWinsOverGroup(t *testing.T) {
	vs := []Entry{
		{Key: NewKey("f"), Value: "plain"},
		{Key: NewReplicaKey("f", 0), Value: "replica"},
	}
	if got := ResolveValue("f", vs); got != "plain" {
		t.Errorf("got %q, want plain", got)
	}
}

func TestEvaluateVisibility(t *testing.T) {
	filled := entries(map[string]string{"x": "anything"})
	blank := entries(map[string]string{"x": ""})

	cases := []struct {
		name string
		cond *Condition
		vs   []Entry
		want bool
	}{
		{"no condition", nil, blank, true},
		{"filled shown", &Condition{FieldID: "x", Operator: OpFilled}, filled, true},
		{"filled hidden", &Condition{FieldID: "x", Operator: OpFilled}, blank, false},
		{"empty shown", &Condition{FieldID: "x", Operator: OpEmpty}, blank, true},
		{"empty hidden", &Condition{FieldID: "x", Operator: OpEmpty}, filled, false},
		{"equals", &Condition{FieldID: "x", Operator: OpEquals, Value: " anything "}, filled, true},
		{"not equals", &Condition{FieldID: "x", Operator: OpNotEquals, Value: "other"}, filled, true},
		{"unknown operator defaults visible", &Condition{FieldID: "x", Operator: "gte"}, blank, true},
	}
	for _, c := range cases {
		if got := EvaluateVisibility(c.cond, c.vs); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestVisibilityAgainstGroupValue(t *testing.T) {
	vs := entries(map[string]string{"members__0": "ana", "members__1": ""})
	cond := &Condition{FieldID: "members", Operator: OpFilled}
	if !EvaluateVisibility(cond, vs) {
		t.Error("group with one filled replica should count as filled")
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Valor Total":      "Valor_Total",
		"  spaced  out  ":  "spaced_out",
		"tab\tand\nnewline": "tab_and_newline",
		"single":           "single",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolutionIsPure(t *testing.T) {
	vs := entries(map[string]string{"f__0": "A", "f__1": "B"})
	before := make([]Entry, len(vs))
	copy(before, vs)
	ResolveValue("f", vs)
	ResolveGroupArray("f", vs)
	EvaluateVisibility(&Condition{FieldID: "f", Operator: OpFilled}, vs)
	if !reflect.DeepEqual(before, vs) {
		t.Error("resolution mutated its input")
	}
}
