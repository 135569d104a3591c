// Package shard maps conversation ids to shards and resolves per-shard settings.
package shard

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

// Select returns the shard index of id for a deployment of n shards.
// The first 8 bytes of SHA-256(id), read as a big-endian uint64, are reduced
// mod n, so the mapping is stable across processes and restarts.
func Select(id string, n int) int {
	if n <= 1 {
		return 0
	}
	sum := sha256.Sum256([]byte(id))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(n))
}

// ParseCSV splits a comma-separated list, trimming items and dropping empty ones.
func ParseCSV(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Pick returns list[i] when present and non-empty, otherwise fallback.
func Pick(list []string, i int, fallback string) string {
	if i >= 0 && i < len(list) && list[i] != "" {
		return list[i]
	}
	return fallback
}
