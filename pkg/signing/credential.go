package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/holohash"
)

const (
	// CapSecretLen is the length of a capability secret.
	CapSecretLen = 64

	// NonceLen is the length of a zome call nonce.
	NonceLen = 32

	// CallExpiry is how long a signed zome call stays valid.
	CallExpiry = 5 * time.Minute

	// GrantTag tags the capability grants the gateway creates.
	GrantTag = "hc-http-gw"
)

// Credential signs zome calls to one cell.
type Credential struct {
	CellID     conductor.CellID
	SigningKey holohash.AgentPubKey
	CapSecret  [CapSecretLen]byte

	privateKey ed25519.PrivateKey
}

// NewCredential generates a fresh key pair and capability secret for cellID.
func NewCredential(cellID conductor.CellID) (*Credential, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	c := &Credential{
		CellID:     cellID,
		SigningKey: holohash.NewAgentPubKey(pub),
		privateKey: priv,
	}
	if _, err := rand.Read(c.CapSecret[:]); err != nil {
		return nil, fmt.Errorf("generate cap secret: %w", err)
	}
	return c, nil
}

// GrantPayload is the capability grant that authorizes this credential.
func (c *Credential) GrantPayload(functions conductor.GrantedFunctions) conductor.GrantZomeCallCapabilityPayload {
	return conductor.GrantZomeCallCapabilityPayload{
		CellID: c.CellID,
		CapGrant: conductor.ZomeCallCapGrant{
			Tag: GrantTag,
			Access: conductor.CapAccess{Assigned: &conductor.AssignedAccess{
				Secret:    c.CapSecret[:],
				Assignees: [][]byte{c.SigningKey.Bytes()},
			}},
			Functions: functions,
		},
	}
}

// Params builds the unsigned parameters of a call to zome/fn with a fresh
// nonce, expiring CallExpiry after now.
func (c *Credential) Params(zome, fn string, payload []byte, now time.Time) (conductor.ZomeCallParams, error) {
	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return conductor.ZomeCallParams{}, fmt.Errorf("generate nonce: %w", err)
	}
	return conductor.ZomeCallParams{
		Provenance: c.SigningKey.Bytes(),
		CellID:     c.CellID,
		ZomeName:   zome,
		FnName:     fn,
		CapSecret:  c.CapSecret[:],
		Payload:    payload,
		Nonce:      nonce,
		ExpiresAt:  now.Add(CallExpiry).UnixMicro(),
	}, nil
}

// Sign serializes params and signs the SHA-512 digest of the serialization.
func (c *Credential) Sign(params conductor.ZomeCallParams) (conductor.SignedZomeCall, error) {
	data, err := msgpack.Marshal(&params)
	if err != nil {
		return conductor.SignedZomeCall{}, fmt.Errorf("encode zome call params: %w", err)
	}
	digest := sha512.Sum512(data)
	return conductor.SignedZomeCall{
		Bytes:     data,
		Signature: ed25519.Sign(c.privateKey, digest[:]),
	}, nil
}

// GrantedFunctions converts an allowlist entry into the functions a
// capability grant covers.
func GrantedFunctions(fns config.AllowedFns) conductor.GrantedFunctions {
	if fns.All {
		return conductor.GrantedFunctions{All: true}
	}
	listed := make([][2]string, 0, len(fns.Listed))
	for zf := range fns.Listed {
		listed = append(listed, [2]string{zf.Zome, zf.Fn})
	}
	sort.Slice(listed, func(i, j int) bool {
		if listed[i][0] != listed[j][0] {
			return listed[i][0] < listed[j][0]
		}
		return listed[i][1] < listed[j][1]
	})
	return conductor.GrantedFunctions{Listed: listed}
}
