package directory

import (
	"context"

	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/gwerrors"
	"hchttp/gateway/pkg/holohash"
)

// Resolver maps a (DNA hash, app id) target to a running, allowlisted app.
type Resolver struct {
	dir   *Directory
	allow *config.AllowList
}

// NewResolver creates a resolver over dir that enforces allow.
func NewResolver(dir *Directory, allow *config.AllowList) *Resolver {
	return &Resolver{dir: dir, allow: allow}
}

// Resolve finds the running app appID with a cell for dna. A miss triggers
// one directory refresh before the target is reported not found.
func (r *Resolver) Resolve(ctx context.Context, dna holohash.DnaHash, appID string) (*AppRecord, error) {
	rec, result := r.dir.Snapshot().match(appID, dna)
	if result == matchMiss {
		snap, err := r.dir.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		rec, result = snap.match(appID, dna)
	}

	switch result {
	case matchDuplicate:
		return nil, gwerrors.New(gwerrors.KindConductor, "app %q is installed more than once", appID)
	case matchMiss:
		return nil, gwerrors.New(gwerrors.KindNotFound, "app %q with DNA %s not found", appID, dna)
	}

	if !r.allow.IsAppAllowed(appID) {
		return nil, gwerrors.New(gwerrors.KindForbidden, "app %q is not allowed", appID)
	}
	return rec, nil
}

// CheckFunction reports whether zome/fn may be called on appID.
func (r *Resolver) CheckFunction(appID, zome, fn string) error {
	if !r.allow.IsAppAllowed(appID) {
		return gwerrors.New(gwerrors.KindForbidden, "app %q is not allowed", appID)
	}
	if !r.allow.IsFunctionAllowed(appID, zome, fn) {
		return gwerrors.New(gwerrors.KindForbidden, "function %s/%s is not allowed for app %q", zome, fn, appID)
	}
	return nil
}
