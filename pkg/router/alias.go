// Package router implements the Assistant Router (C6): normalizing a
// routing target, resolving it via alias map / rule-based hint /
// embedding similarity, and driving the downstream join + emit effect.
package router

import "strings"

// defaultAliases are the fixed entries named in §4.6; they are defaults,
// not contract (SPEC_FULL.md Open Question 3) — an AliasMap built with
// NewAliasMap always starts from these and callers may override or add
// entries on top.
var defaultAliases = map[string]string{
	"logs":    "log-analyst",
	"catalog": "catalog-search",
	"debug":   "run-debugger",
	"help":    "coordinator",
	"build":   "assistants-assistant",
}

// AliasMap is an immutable-after-construction (§5 Shared resources:
// "Alias map. Immutable after startup") lowercase-keyed lookup from a
// short alias to an assistant key.
type AliasMap struct {
	entries map[string]string
}

// NewAliasMap builds an AliasMap from the fixed defaults overlaid with
// overrides (overrides win on key collision).
func NewAliasMap(overrides map[string]string) *AliasMap {
	entries := make(map[string]string, len(defaultAliases)+len(overrides))
	for k, v := range defaultAliases {
		entries[k] = v
	}
	for k, v := range overrides {
		entries[strings.ToLower(k)] = v
	}
	return &AliasMap{entries: entries}
}

// Normalize strips a leading '@', lower-cases, then applies the alias
// map; an unrecognized alias passes through as its lower-cased self
// (§4.6: "always a total key-lowercasing lookup").
func (m *AliasMap) Normalize(raw string) string {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
	if target, ok := m.entries[key]; ok {
		return target
	}
	return key
}
