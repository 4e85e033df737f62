package extract

import (
	"sort"

	"releasedigest/internal/release"
)

// Accept decides whether a fully assembled record carries enough substance
// to publish: a usable app name plus at least one of version, status, or
// key changes. "Unknown" is the status heuristic's own fallback and does
// not count as substance.
func Accept(record release.Record, resolver *AppNameResolver) bool {
	if record.App == "" || resolver.IsGeneric(record.App) {
		return false
	}
	if record.Version != "" {
		return true
	}
	if record.Status != "" && record.Status != "Unknown" {
		return true
	}
	return len(record.KeyChanges) > 0
}

// Reduce collapses per-message records into one current record per
// (app, version) key, keeping the greatest timestamp within each group,
// and returns the survivors newest-first. Ties are broken by key so the
// output is deterministic for identical input.
func Reduce(records []release.Record) []release.Record {
	latest := make(map[string]release.Record, len(records))
	for _, record := range records {
		key := record.Key()
		if current, ok := latest[key]; ok && current.Timestamp >= record.Timestamp {
			continue
		}
		latest[key] = record
	}

	result := make([]release.Record, 0, len(latest))
	for _, record := range latest {
		result = append(result, record)
	}
	sort.Slice(result, func(i int, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].Key() < result[j].Key()
	})
	return result
}
