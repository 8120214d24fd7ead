package config

import (
	"fmt"
	"strings"
)

// ZomeFn names a single function within a zome.
type ZomeFn struct {
	Zome string
	Fn   string
}

// String returns the "zome/fn" form.
func (z ZomeFn) String() string {
	return z.Zome + "/" + z.Fn
}

// AllowedFns is the set of functions an app exposes through the gateway.
// When All is true, Listed is ignored and every function is permitted.
type AllowedFns struct {
	All    bool
	Listed map[ZomeFn]struct{}
}

// Permits reports whether the function is allowed.
func (a AllowedFns) Permits(zome, fn string) bool {
	if a.All {
		return true
	}
	_, ok := a.Listed[ZomeFn{Zome: zome, Fn: fn}]
	return ok
}

// ParseAllowedFns parses allowed function entries. Each entry is either
// "zome/fn" or a comma separated list of them; a lone "*" allows everything.
func ParseAllowedFns(entries []string) (AllowedFns, error) {
	var parts []string
	for _, entry := range entries {
		for _, p := range strings.Split(entry, ",") {
			parts = append(parts, strings.TrimSpace(p))
		}
	}

	if len(parts) == 1 && parts[0] == AllFunctions {
		return AllowedFns{All: true}, nil
	}
	if len(parts) == 0 {
		return AllowedFns{}, fmt.Errorf("no functions listed")
	}

	listed := make(map[ZomeFn]struct{}, len(parts))
	for _, p := range parts {
		zome, fn, ok := strings.Cut(p, "/")
		if !ok {
			return AllowedFns{}, fmt.Errorf("failed to parse the zome name and function name from value %q", p)
		}
		if zome == "" || fn == "" {
			return AllowedFns{}, fmt.Errorf("zome name or function name is empty for value %q", p)
		}
		listed[ZomeFn{Zome: zome, Fn: fn}] = struct{}{}
	}
	return AllowedFns{Listed: listed}, nil
}

// ParseAppIDs splits a comma separated list of app ids, trimming whitespace,
// dropping empty entries and duplicates. Order of first appearance is kept.
func ParseAppIDs(s string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, p := range strings.Split(s, ",") {
		id := strings.TrimSpace(p)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// AllowList is the parsed, immutable form of AppsConfig.
type AllowList struct {
	apps map[string]AllowedFns
}

// NewAllowList parses the apps configuration. Every allowed app must have
// an allowed_fns entry.
func NewAllowList(cfg AppsConfig) (*AllowList, error) {
	apps := make(map[string]AllowedFns, len(cfg.AllowedAppIDs))
	for _, id := range cfg.AllowedAppIDs {
		entries, ok := cfg.AllowedFns[id]
		if !ok {
			return nil, fmt.Errorf("%s is not present in allowed_fns", id)
		}
		fns, err := ParseAllowedFns(entries)
		if err != nil {
			return nil, fmt.Errorf("allowed_fns for %s: %w", id, err)
		}
		apps[id] = fns
	}
	return &AllowList{apps: apps}, nil
}

// IsAppAllowed reports whether the app id is allowlisted.
func (l *AllowList) IsAppAllowed(appID string) bool {
	_, ok := l.apps[appID]
	return ok
}

// FunctionsFor returns the allowed functions of an app.
func (l *AllowList) FunctionsFor(appID string) (AllowedFns, bool) {
	fns, ok := l.apps[appID]
	return fns, ok
}

// IsFunctionAllowed reports whether zome/fn of the app may be called.
func (l *AllowList) IsFunctionAllowed(appID, zome, fn string) bool {
	fns, ok := l.apps[appID]
	return ok && fns.Permits(zome, fn)
}
