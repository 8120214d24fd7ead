package signing

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha512"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"hchttp/gateway/internal/conductortest"
	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/holohash"
)

type fakeAuthorizer struct {
	mu     sync.Mutex
	grants []conductor.GrantZomeCallCapabilityPayload
	err    error
}

func (f *fakeAuthorizer) AuthorizeSigningCredentials(_ context.Context, payload conductor.GrantZomeCallCapabilityPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.grants = append(f.grants, payload)
	return nil
}

// testCell returns a cell whose agent key is a well-formed hash of a
// deterministic ed25519 key.
func testCell(seed byte) conductor.CellID {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	agent := holohash.NewAgentPubKey(priv.Public().(ed25519.PublicKey))
	return conductor.CellID{DnaHash: conductortest.DnaHash(seed), AgentPubKey: agent}
}

func TestCredential_SignVerifies(t *testing.T) {
	cell := testCell(1)
	cred, err := NewCredential(cell)
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}

	now := time.Now()
	params, err := cred.Params("forum", "get_posts", []byte{0xc0}, now)
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	if len(params.Nonce) != NonceLen {
		t.Errorf("nonce length = %d", len(params.Nonce))
	}
	if want := now.Add(CallExpiry).UnixMicro(); params.ExpiresAt != want {
		t.Errorf("ExpiresAt = %d, want %d", params.ExpiresAt, want)
	}

	signed, err := cred.Sign(params)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	var decoded conductor.ZomeCallParams
	if err := msgpack.Unmarshal(signed.Bytes, &decoded); err != nil {
		t.Fatalf("decode signed bytes: %v", err)
	}
	if decoded.CellID != cell || decoded.FnName != "get_posts" {
		t.Errorf("decoded params = %+v", decoded)
	}

	provenance, err := holohash.AgentPubKeyFromBytes(decoded.Provenance)
	if err != nil {
		t.Fatalf("provenance: %v", err)
	}
	digest := sha512.Sum512(signed.Bytes)
	if !ed25519.Verify(provenance.PublicKey(), digest[:], signed.Signature) {
		t.Error("signature does not verify against provenance")
	}
	if provenance != cred.SigningKey {
		t.Errorf("provenance = %s, want signing key %s", provenance, cred.SigningKey)
	}

	tampered := append([]byte(nil), signed.Bytes...)
	tampered[len(tampered)-1] ^= 0xff
	digest = sha512.Sum512(tampered)
	if ed25519.Verify(provenance.PublicKey(), digest[:], signed.Signature) {
		t.Error("signature verifies over tampered bytes")
	}
}

func TestCredential_FreshNonce(t *testing.T) {
	cred, err := NewCredential(testCell(1))
	if err != nil {
		t.Fatal(err)
	}
	a, _ := cred.Params("z", "f", nil, time.Now())
	b, _ := cred.Params("z", "f", nil, time.Now())
	if string(a.Nonce) == string(b.Nonce) {
		t.Error("nonces repeated")
	}
}

func TestCredential_GrantPayload(t *testing.T) {
	cred, err := NewCredential(testCell(1))
	if err != nil {
		t.Fatal(err)
	}
	p := cred.GrantPayload(conductor.GrantedFunctions{All: true})

	access := p.CapGrant.Access.Assigned
	if access == nil {
		t.Fatal("grant is not assigned access")
	}
	if len(access.Secret) != CapSecretLen {
		t.Errorf("secret length = %d", len(access.Secret))
	}
	if len(access.Assignees) != 1 || string(access.Assignees[0]) != string(cred.SigningKey.Bytes()) {
		t.Error("assignee is not the signing key")
	}
	if p.CellID != cred.CellID {
		t.Error("grant targets the wrong cell")
	}
}

func TestGrantedFunctions(t *testing.T) {
	all := GrantedFunctions(config.AllowedFns{All: true})
	if !all.All {
		t.Error("All not carried over")
	}

	fns, err := config.ParseAllowedFns([]string{"b/x,a/y,a/x"})
	if err != nil {
		t.Fatal(err)
	}
	listed := GrantedFunctions(fns)
	want := [][2]string{{"a", "x"}, {"a", "y"}, {"b", "x"}}
	if len(listed.Listed) != len(want) {
		t.Fatalf("Listed = %v", listed.Listed)
	}
	for i := range want {
		if listed.Listed[i] != want[i] {
			t.Errorf("Listed[%d] = %v, want %v", i, listed.Listed[i], want[i])
		}
	}
}

func TestProvisionAll(t *testing.T) {
	auth := &fakeAuthorizer{}
	p := NewProvisioner(auth, nil)
	signer := NewSigner()
	ctx := context.Background()

	cells := []conductor.CellID{testCell(1), testCell(2), testCell(1)}
	if err := p.ProvisionAll(ctx, signer, cells, conductor.GrantedFunctions{All: true}); err != nil {
		t.Fatalf("ProvisionAll() error = %v", err)
	}
	if signer.Len() != 2 {
		t.Errorf("signer holds %d credentials, want 2", signer.Len())
	}
	if len(auth.grants) != 2 {
		t.Errorf("granted %d times, want 2", len(auth.grants))
	}

	// Already provisioned cells are skipped.
	if err := p.ProvisionAll(ctx, signer, cells, conductor.GrantedFunctions{All: true}); err != nil {
		t.Fatalf("second ProvisionAll() error = %v", err)
	}
	if len(auth.grants) != 2 {
		t.Errorf("granted %d times after re-provision, want 2", len(auth.grants))
	}

	if _, err := signer.SignZomeCall(testCell(2), "z", "f", nil); err != nil {
		t.Errorf("SignZomeCall() error = %v", err)
	}
	if _, err := signer.SignZomeCall(testCell(3), "z", "f", nil); err == nil {
		t.Error("SignZomeCall() for unknown cell should fail")
	}
}

func TestProvisionAll_Failure(t *testing.T) {
	auth := &fakeAuthorizer{err: errors.New("grant rejected")}
	signer := NewSigner()

	err := NewProvisioner(auth, nil).ProvisionAll(context.Background(), signer, []conductor.CellID{testCell(1)}, conductor.GrantedFunctions{All: true})
	if err == nil {
		t.Fatal("expected error")
	}
	if signer.Len() != 0 {
		t.Error("failed provisioning left a credential behind")
	}
}
