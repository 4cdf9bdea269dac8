// Package storage persists the dispatch audit trail: one record per
// delivery attempt and one summary per finished monitoring session.
// Backends are a JSONL file store and an optional SQLite store behind
// the sqlite build tag.
package storage
