package conductor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"hchttp/gateway/pkg/holohash"
)

// CellID identifies a cell: a DNA instantiated for an agent.
// It encodes as a two element msgpack array of raw hashes.
type CellID struct {
	DnaHash     holohash.DnaHash
	AgentPubKey holohash.AgentPubKey
}

// String returns a readable form for logs.
func (c CellID) String() string {
	return fmt.Sprintf("%s:%s", c.DnaHash, c.AgentPubKey)
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (c CellID) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeBytes(c.DnaHash[:]); err != nil {
		return err
	}
	return enc.EncodeBytes(c.AgentPubKey[:])
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (c *CellID) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("cell id: expected 2 elements, got %d", n)
	}

	raw, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	dna, err := holohash.DnaHashFromBytes(raw)
	if err != nil {
		return fmt.Errorf("cell id dna hash: %w", err)
	}

	raw, err = dec.DecodeBytes()
	if err != nil {
		return err
	}
	agent, err := holohash.AgentPubKeyFromBytes(raw)
	if err != nil {
		return fmt.Errorf("cell id agent key: %w", err)
	}

	c.DnaHash = dna
	c.AgentPubKey = agent
	return nil
}

// AppStatus is the lifecycle state of an installed app.
type AppStatus string

// App statuses.
const (
	AppStatusRunning  AppStatus = "running"
	AppStatusPaused   AppStatus = "paused"
	AppStatusDisabled AppStatus = "disabled"
)

// DecodeMsgpack accepts both a bare variant name and a {type, value} map.
func (s *AppStatus) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = AppStatus(t)
	case map[string]any:
		name, _ := t["type"].(string)
		*s = AppStatus(name)
	default:
		return fmt.Errorf("app status: unexpected %T", v)
	}
	return nil
}

// EncodeMsgpack encodes the status as {type: name}.
func (s AppStatus) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(map[string]string{"type": string(s)})
}

// Cell info variants.
const (
	CellTypeProvisioned = "provisioned"
	CellTypeCloned      = "cloned"
	CellTypeStem        = "stem"
)

// CellInfo describes one cell of an app role.
type CellInfo struct {
	Type  string        `msgpack:"type"`
	Value CellInfoValue `msgpack:"value"`
}

// CellInfoValue is the payload of a cell info variant. Stem cells have no
// cell id.
type CellInfoValue struct {
	CellID *CellID `msgpack:"cell_id,omitempty"`
	Name   string  `msgpack:"name"`
}

// AppInfo describes an installed app.
type AppInfo struct {
	InstalledAppID string                `msgpack:"installed_app_id"`
	CellInfo       map[string][]CellInfo `msgpack:"cell_info"`
	Status         AppStatus             `msgpack:"status"`
	AgentPubKey    []byte                `msgpack:"agent_pub_key"`
}

// ProvisionedCells returns the cell ids of the app's provisioned cells.
// Cloned and stem cells are not addressable through the gateway.
func (a AppInfo) ProvisionedCells() []CellID {
	roles := make([]string, 0, len(a.CellInfo))
	for role := range a.CellInfo {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var cells []CellID
	for _, role := range roles {
		for _, ci := range a.CellInfo[role] {
			if ci.Type == CellTypeProvisioned && ci.Value.CellID != nil {
				cells = append(cells, *ci.Value.CellID)
			}
		}
	}
	return cells
}

// AllowedOrigins is the set of origins an app interface accepts.
// On the wire it is "*" or a comma separated list.
type AllowedOrigins struct {
	Any     bool
	Origins []string
}

// AnyOrigin permits every origin.
var AnyOrigin = AllowedOrigins{Any: true}

// OnlyOrigins permits the given origins.
func OnlyOrigins(origins ...string) AllowedOrigins {
	return AllowedOrigins{Origins: origins}
}

// Permits reports whether origin is accepted.
func (o AllowedOrigins) Permits(origin string) bool {
	if o.Any {
		return true
	}
	for _, allowed := range o.Origins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// String returns the wire form.
func (o AllowedOrigins) String() string {
	if o.Any {
		return "*"
	}
	return strings.Join(o.Origins, ",")
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (o AllowedOrigins) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(o.String())
}

// DecodeMsgpack accepts the string form and, leniently, a list of origins.
func (o *AllowedOrigins) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	*o = AllowedOrigins{}
	switch t := v.(type) {
	case string:
		if t == "*" {
			o.Any = true
			return nil
		}
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				o.Origins = append(o.Origins, s)
			}
		}
	case []any:
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("allowed origins: unexpected element %T", e)
			}
			if s == "*" {
				o.Any = true
			}
			o.Origins = append(o.Origins, s)
		}
	default:
		return fmt.Errorf("allowed origins: unexpected %T", v)
	}
	return nil
}

// AppInterfaceInfo describes an attached app interface.
type AppInterfaceInfo struct {
	Port           uint16         `msgpack:"port"`
	AllowedOrigins AllowedOrigins `msgpack:"allowed_origins"`
	InstalledAppID *string        `msgpack:"installed_app_id"`
}

// ServesApp reports whether the interface can be used by appID.
func (i AppInterfaceInfo) ServesApp(appID string) bool {
	return i.InstalledAppID == nil || *i.InstalledAppID == appID
}

// AttachAppInterfacePayload asks the conductor to open a new app interface.
type AttachAppInterfacePayload struct {
	Port           *uint16        `msgpack:"port"`
	AllowedOrigins AllowedOrigins `msgpack:"allowed_origins"`
	InstalledAppID *string        `msgpack:"installed_app_id"`
}

// IssueAppAuthenticationTokenPayload requests a token for an app interface.
type IssueAppAuthenticationTokenPayload struct {
	InstalledAppID string `msgpack:"installed_app_id"`
	ExpirySeconds  uint64 `msgpack:"expiry_seconds"`
	SingleUse      bool   `msgpack:"single_use"`
}

// AppAuthenticationTokenIssued carries an issued token.
type AppAuthenticationTokenIssued struct {
	Token     []byte `msgpack:"token"`
	ExpiresAt *int64 `msgpack:"expires_at"`
}

// AppAuthenticationRequest is the payload of an authenticate message.
type AppAuthenticationRequest struct {
	Token []byte `msgpack:"token"`
}

// GrantedFunctions lists the functions a capability grant covers.
type GrantedFunctions struct {
	All    bool
	Listed [][2]string
}

// EncodeMsgpack encodes "All" or {"Listed": [[zome, fn], ...]}.
func (g GrantedFunctions) EncodeMsgpack(enc *msgpack.Encoder) error {
	if g.All {
		return enc.EncodeString("All")
	}
	listed := make([][]string, 0, len(g.Listed))
	for _, zf := range g.Listed {
		listed = append(listed, []string{zf[0], zf[1]})
	}
	return enc.Encode(map[string]any{"Listed": listed})
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (g *GrantedFunctions) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	*g = GrantedFunctions{}
	switch t := v.(type) {
	case string:
		if t != "All" {
			return fmt.Errorf("granted functions: unexpected %q", t)
		}
		g.All = true
	case map[string]any:
		list, ok := t["Listed"].([]any)
		if !ok {
			return fmt.Errorf("granted functions: missing Listed")
		}
		for _, e := range list {
			pair, ok := e.([]any)
			if !ok || len(pair) != 2 {
				return fmt.Errorf("granted functions: bad entry %v", e)
			}
			zome, _ := pair[0].(string)
			fn, _ := pair[1].(string)
			g.Listed = append(g.Listed, [2]string{zome, fn})
		}
	default:
		return fmt.Errorf("granted functions: unexpected %T", v)
	}
	return nil
}

// Permits reports whether zome/fn is covered.
func (g GrantedFunctions) Permits(zome, fn string) bool {
	if g.All {
		return true
	}
	for _, zf := range g.Listed {
		if zf[0] == zome && zf[1] == fn {
			return true
		}
	}
	return false
}

// AssignedAccess restricts a capability to holders of the secret who sign
// with one of the assignee keys.
type AssignedAccess struct {
	Secret    []byte   `msgpack:"secret"`
	Assignees [][]byte `msgpack:"assignees"`
}

// CapAccess is the access variant of a grant; only Assigned is used.
type CapAccess struct {
	Assigned *AssignedAccess `msgpack:"Assigned,omitempty"`
}

// ZomeCallCapGrant is a capability grant.
type ZomeCallCapGrant struct {
	Tag       string           `msgpack:"tag"`
	Access    CapAccess        `msgpack:"access"`
	Functions GrantedFunctions `msgpack:"functions"`
}

// GrantZomeCallCapabilityPayload grants a capability on a cell.
type GrantZomeCallCapabilityPayload struct {
	CellID   CellID           `msgpack:"cell_id"`
	CapGrant ZomeCallCapGrant `msgpack:"cap_grant"`
}

// ZomeCallParams are the unsigned parameters of a zome call.
// The signature covers their msgpack encoding.
type ZomeCallParams struct {
	Provenance []byte `msgpack:"provenance"`
	CellID     CellID `msgpack:"cell_id"`
	ZomeName   string `msgpack:"zome_name"`
	FnName     string `msgpack:"fn_name"`
	CapSecret  []byte `msgpack:"cap_secret"`
	Payload    []byte `msgpack:"payload"`
	Nonce      []byte `msgpack:"nonce"`
	ExpiresAt  int64  `msgpack:"expires_at"`
}

// SignedZomeCall is what the app interface receives for call_zome.
type SignedZomeCall struct {
	Bytes     []byte `msgpack:"bytes"`
	Signature []byte `msgpack:"signature"`
}
