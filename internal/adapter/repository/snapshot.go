package repository

import (
	"encoding/json"
	"sort"
	"strconv"

	"kirim/internal/domain/repository"
)

// orderedSnapshot builds a Snapshot from insertion-ordered keys, ordering by
// the query's order key and applying LimitToLast. Both store implementations
// order client-side so their delivery semantics stay identical.
func orderedSnapshot(keys []string, values map[string]json.RawMessage, q repository.Query) repository.Snapshot {
	children := make([]repository.Child, 0, len(keys))
	for _, k := range keys {
		children = append(children, repository.Child{Key: k, Raw: values[k]})
	}

	if q.OrderBy != "" {
		sort.SliceStable(children, func(i, j int) bool {
			return orderValue(children[i].Raw, q.OrderBy) < orderValue(children[j].Raw, q.OrderBy)
		})
	}
	if q.LimitToLast > 0 && len(children) > q.LimitToLast {
		children = children[len(children)-q.LimitToLast:]
	}
	return repository.Snapshot{Children: children}
}

// orderValue extracts a numeric sort key from a child value. Non-numeric
// order keys compare equal, which keeps insertion order (the sort is stable).
func orderValue(raw json.RawMessage, field string) float64 {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0
	}
	fv, ok := obj[field]
	if !ok {
		return 0
	}
	if n, err := strconv.ParseFloat(string(fv), 64); err == nil {
		return n
	}
	return 0
}
