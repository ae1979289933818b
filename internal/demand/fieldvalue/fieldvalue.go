// Package fieldvalue resolves and flattens demand field values, including
// replicated group fields and conditional visibility. Everything here is
// pure: resolution never mutates its input, so the same functions back UI
// previews, action payload building and validation.
package fieldvalue

import (
	"sort"
	"strconv"
	"strings"
)

// replicaSep separates a group field id from its 0-based replica index in
// the external key format, e.g. "contacts__0".
const replicaSep = "__"

// Key structured field value key. Replica is nil for plain fields and holds
// the 0-based replica index for group values.
type Key struct {
	FieldID string
	Replica *int
}

// NewKey builds a plain (non-replicated) key.
func NewKey(fieldID string) Key {
	return Key{FieldID: fieldID}
}

// NewReplicaKey builds a key for one replica of a group field.
func NewReplicaKey(fieldID string, replica int) Key {
	return Key{FieldID: fieldID, Replica: &replica}
}

// External renders the key in the wire format: "{fieldId}" or
// "{fieldId}__{n}".
func (k Key) External() string {
	if k.Replica == nil {
		return k.FieldID
	}
	return k.FieldID + replicaSep + strconv.Itoa(*k.Replica)
}

// ParseKey parses an external key. A trailing "__{n}" with a non-negative
// integer n marks a replica; anything else is treated as a plain field id.
func ParseKey(s string) Key {
	idx := strings.LastIndex(s, replicaSep)
	if idx <= 0 {
		return NewKey(s)
	}
	n, err := strconv.Atoi(s[idx+len(replicaSep):])
	if err != nil || n < 0 {
		return NewKey(s)
	}
	return NewReplicaKey(s[:idx], n)
}

// Entry one field value as seen by the resolver.
type Entry struct {
	Key   Key
	Value string
}

// ResolveValue looks up a field value by id. A direct (non-replica) match
// wins. Otherwise the id is treated as a group base id: all replicas are
// collected in index order, empty strings dropped, and the rest joined with
// ", ". Returns "" when nothing is found.
func ResolveValue(fieldID string, entries []Entry) string {
	for _, e := range entries {
		if e.Key.Replica == nil && e.Key.FieldID == fieldID {
			return e.Value
		}
	}
	parts := ResolveGroupArray(fieldID, entries)
	filled := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			filled = append(filled, p)
		}
	}
	return strings.Join(filled, ", ")
}

// ResolveGroupArray collects the replicas of a group field as an ordered
// slice. Missing indexes below the maximum observed one come back as "".
func ResolveGroupArray(fieldID string, entries []Entry) []string {
	byIndex := map[int]string{}
	max := -1
	for _, e := range entries {
		if e.Key.Replica == nil || e.Key.FieldID != fieldID {
			continue
		}
		n := *e.Key.Replica
		byIndex[n] = e.Value
		if n > max {
			max = n
		}
	}
	if max < 0 {
		return nil
	}
	out := make([]string, max+1)
	for n, v := range byIndex {
		out[n] = v
	}
	return out
}

// ReplicaCount returns the live replica count for a group field: maximum
// observed index + 1, or the template default when no value exists yet.
func ReplicaCount(fieldID string, entries []Entry, templateDefault int) int {
	if arr := ResolveGroupArray(fieldID, entries); arr != nil {
		return len(arr)
	}
	return templateDefault
}

// Visibility operators.
const (
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
	OpFilled    = "filled"
	OpEmpty     = "empty"
)

// Condition conditional visibility rule referencing another field's value.
type Condition struct {
	FieldID  string `json:"field_id"`
	Operator string `json:"operator"`
	Value    string `json:"value,omitempty"`
}

// EvaluateVisibility decides whether a field is visible under the given
// values. No condition means always visible. equals/not_equals compare
// trimmed strings; filled/empty test for a non-blank value. An unknown
// operator hides nothing.
func EvaluateVisibility(cond *Condition, entries []Entry) bool {
	if cond == nil {
		return true
	}
	current := strings.TrimSpace(ResolveValue(cond.FieldID, entries))
	switch cond.Operator {
	case OpEquals:
		return current == strings.TrimSpace(cond.Value)
	case OpNotEquals:
		return current != strings.TrimSpace(cond.Value)
	case OpFilled:
		return current != ""
	case OpEmpty:
		return current == ""
	default:
		return true
	}
}

// SanitizeName makes a label safe for use as a payload key by replacing
// every run of whitespace with a single underscore.
func SanitizeName(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), "_")
}

// Flatten renders entries as an external key→value map, the format the
// action pipeline and the HTTP API exchange.
func Flatten(entries []Entry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key.External()] = e.Value
	}
	return out
}

// SortEntries orders entries by field id, then replica index. Useful for
// deterministic rendering; resolution itself does not depend on input order.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.FieldID != b.FieldID {
			return a.FieldID < b.FieldID
		}
		ai, bi := -1, -1
		if a.Replica != nil {
			ai = *a.Replica
		}
		if b.Replica != nil {
			bi = *b.Replica
		}
		return ai < bi
	})
}
