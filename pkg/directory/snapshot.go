package directory

import (
	"time"

	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/holohash"
)

// AppRecord is a running app and its addressable cells, keyed by DNA.
type AppRecord struct {
	AppID  string
	Status conductor.AppStatus
	Cells  map[holohash.DnaHash]conductor.CellID
}

// CellFor returns the cell of the app that runs dna.
func (r *AppRecord) CellFor(dna holohash.DnaHash) (conductor.CellID, bool) {
	cell, ok := r.Cells[dna]
	return cell, ok
}

// CellIDs returns every cell of the app.
func (r *AppRecord) CellIDs() []conductor.CellID {
	cells := make([]conductor.CellID, 0, len(r.Cells))
	for _, cell := range r.Cells {
		cells = append(cells, cell)
	}
	return cells
}

// Snapshot is an immutable view of the running apps.
type Snapshot struct {
	apps        map[string]*AppRecord
	duplicates  map[string]struct{}
	RefreshedAt time.Time
}

// NewSnapshot builds a snapshot from an app listing. Only provisioned cells
// are addressable. App ids listed more than once are recorded as duplicates.
func NewSnapshot(apps []conductor.AppInfo, refreshedAt time.Time) *Snapshot {
	s := &Snapshot{
		apps:        make(map[string]*AppRecord, len(apps)),
		duplicates:  make(map[string]struct{}),
		RefreshedAt: refreshedAt,
	}
	for _, app := range apps {
		if _, seen := s.apps[app.InstalledAppID]; seen {
			s.duplicates[app.InstalledAppID] = struct{}{}
			continue
		}
		rec := &AppRecord{
			AppID:  app.InstalledAppID,
			Status: app.Status,
			Cells:  make(map[holohash.DnaHash]conductor.CellID),
		}
		for _, cell := range app.ProvisionedCells() {
			rec.Cells[cell.DnaHash] = cell
		}
		s.apps[app.InstalledAppID] = rec
	}
	return s
}

// Len returns the number of distinct apps.
func (s *Snapshot) Len() int {
	return len(s.apps)
}

// App returns the record of appID. Duplicated ids are not returned.
func (s *Snapshot) App(appID string) (*AppRecord, bool) {
	if _, dup := s.duplicates[appID]; dup {
		return nil, false
	}
	rec, ok := s.apps[appID]
	return rec, ok
}

// Duplicates returns the app ids that were listed more than once.
func (s *Snapshot) Duplicates() []string {
	ids := make([]string, 0, len(s.duplicates))
	for id := range s.duplicates {
		ids = append(ids, id)
	}
	return ids
}

type matchResult int

const (
	matchMiss matchResult = iota
	matchFound
	matchDuplicate
)

// match looks up the app appID that runs dna.
func (s *Snapshot) match(appID string, dna holohash.DnaHash) (*AppRecord, matchResult) {
	if s == nil {
		return nil, matchMiss
	}
	if _, dup := s.duplicates[appID]; dup {
		return nil, matchDuplicate
	}
	rec, ok := s.apps[appID]
	if !ok {
		return nil, matchMiss
	}
	if _, ok := rec.Cells[dna]; !ok {
		return nil, matchMiss
	}
	return rec, matchFound
}
