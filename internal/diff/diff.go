// Package diff computes field-level deltas between buyer snapshots and builds
// the payloads stored in history entries.
package diff

import (
	"encoding/json"
	"slices"

	"github.com/Ashutosh-Shukla-036/buyer-leads/internal/model"
)

type field struct {
	name  string
	value func(model.Buyer) any
	equal func(a, b model.Buyer) bool
}

// schema lists every diffable buyer field. Identity, owner and timestamps are not diffed.
var schema = []field{
	{"fullName", func(b model.Buyer) any { return b.FullName }, func(a, b model.Buyer) bool { return a.FullName == b.FullName }},
	{"email", func(b model.Buyer) any { return deref(b.Email) }, func(a, b model.Buyer) bool { return ptrEqual(a.Email, b.Email) }},
	{"phone", func(b model.Buyer) any { return b.Phone }, func(a, b model.Buyer) bool { return a.Phone == b.Phone }},
	{"city", func(b model.Buyer) any { return b.City }, func(a, b model.Buyer) bool { return a.City == b.City }},
	{"propertyType", func(b model.Buyer) any { return b.PropertyType }, func(a, b model.Buyer) bool { return a.PropertyType == b.PropertyType }},
	{"bhk", func(b model.Buyer) any { return deref(b.BHK) }, func(a, b model.Buyer) bool { return ptrEqual(a.BHK, b.BHK) }},
	{"purpose", func(b model.Buyer) any { return b.Purpose }, func(a, b model.Buyer) bool { return a.Purpose == b.Purpose }},
	{"budgetMin", func(b model.Buyer) any { return deref(b.BudgetMin) }, func(a, b model.Buyer) bool { return ptrEqual(a.BudgetMin, b.BudgetMin) }},
	{"budgetMax", func(b model.Buyer) any { return deref(b.BudgetMax) }, func(a, b model.Buyer) bool { return ptrEqual(a.BudgetMax, b.BudgetMax) }},
	{"timeline", func(b model.Buyer) any { return b.Timeline }, func(a, b model.Buyer) bool { return a.Timeline == b.Timeline }},
	{"source", func(b model.Buyer) any { return b.Source }, func(a, b model.Buyer) bool { return a.Source == b.Source }},
	{"status", func(b model.Buyer) any { return b.Status }, func(a, b model.Buyer) bool { return a.Status == b.Status }},
	{"notes", func(b model.Buyer) any { return deref(b.Notes) }, func(a, b model.Buyer) bool { return ptrEqual(a.Notes, b.Notes) }},
	{"tags", func(b model.Buyer) any { return tags(b.Tags) }, func(a, b model.Buyer) bool { return slices.Equal(a.Tags, b.Tags) }},
}

// Compute compares before and after on the named fields only. Unknown names are ignored.
// The result is empty when nothing changed.
func Compute(before, after model.Buyer, fields []string) model.Diff {
	d := model.Diff{}
	for _, f := range schema {
		if !slices.Contains(fields, f.name) || f.equal(before, after) {
			continue
		}
		d[f.name] = model.FieldChange{Before: f.value(before), After: f.value(after)}
	}
	return d
}

// Payload encodes a history diff for kind. Sentinel kinds carry the full snapshot.
func Payload(kind model.HistoryKind, snapshot model.Buyer, d model.Diff) (json.RawMessage, error) {
	switch kind {
	case model.HistoryCreated, model.HistoryDeleted:
		return json.Marshal(map[string]model.Buyer{string(kind): snapshot})
	default:
		return json.Marshal(d)
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func tags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
