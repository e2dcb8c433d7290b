package storage

// Package storage provides the SQLite-backed user repository with schema
// bootstrap, per-request connection acquisition, and sentinel error
// classification for conflict and not-found outcomes.
