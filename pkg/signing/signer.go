package signing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/telemetry/metrics"
)

// Authorizer registers capability grants. *adminlink.Link implements it.
type Authorizer interface {
	AuthorizeSigningCredentials(ctx context.Context, payload conductor.GrantZomeCallCapabilityPayload) error
}

// Signer holds the credentials of one app connection, one per cell.
type Signer struct {
	mu    sync.RWMutex
	creds map[conductor.CellID]*Credential
}

// NewSigner creates an empty signer.
func NewSigner() *Signer {
	return &Signer{creds: make(map[conductor.CellID]*Credential)}
}

// Get returns the credential for cellID.
func (s *Signer) Get(cellID conductor.CellID) (*Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[cellID]
	return c, ok
}

// Add stores c, replacing any credential for the same cell.
func (s *Signer) Add(c *Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[c.CellID] = c
}

// Len returns the number of credentials held.
func (s *Signer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}

// SignZomeCall builds and signs a call to zome/fn on cellID.
func (s *Signer) SignZomeCall(cellID conductor.CellID, zome, fn string, payload []byte) (conductor.SignedZomeCall, error) {
	cred, ok := s.Get(cellID)
	if !ok {
		return conductor.SignedZomeCall{}, fmt.Errorf("no signing credentials for cell %s", cellID)
	}
	params, err := cred.Params(zome, fn, payload, time.Now())
	if err != nil {
		return conductor.SignedZomeCall{}, err
	}
	return cred.Sign(params)
}

// Provisioner creates credentials and registers them with the conductor.
type Provisioner struct {
	auth    Authorizer
	metrics *metrics.Collector
}

// NewProvisioner creates a provisioner that registers grants through auth.
func NewProvisioner(auth Authorizer, collector *metrics.Collector) *Provisioner {
	return &Provisioner{auth: auth, metrics: collector}
}

// Provision creates a credential for cellID and grants it access to the
// given functions.
func (p *Provisioner) Provision(ctx context.Context, cellID conductor.CellID, granted conductor.GrantedFunctions) (*Credential, error) {
	cred, err := NewCredential(cellID)
	if err != nil {
		return nil, err
	}
	if err := p.auth.AuthorizeSigningCredentials(ctx, cred.GrantPayload(granted)); err != nil {
		return nil, fmt.Errorf("authorize signing credentials for %s: %w", cellID, err)
	}
	return cred, nil
}

// ProvisionAll provisions every cell in cells that signer does not hold yet.
// Cells are provisioned concurrently; the first failure cancels the rest.
func (p *Provisioner) ProvisionAll(ctx context.Context, signer *Signer, cells []conductor.CellID, granted conductor.GrantedFunctions) error {
	seen := make(map[conductor.CellID]struct{}, len(cells))
	g, gctx := errgroup.WithContext(ctx)
	for _, cellID := range cells {
		if _, dup := seen[cellID]; dup {
			continue
		}
		seen[cellID] = struct{}{}
		if _, ok := signer.Get(cellID); ok {
			continue
		}

		g.Go(func() error {
			cred, err := p.Provision(gctx, cellID, granted)
			if err != nil {
				return err
			}
			signer.Add(cred)
			p.metrics.RecordCredentialsProvisioned(1)
			return nil
		})
	}
	return g.Wait()
}
