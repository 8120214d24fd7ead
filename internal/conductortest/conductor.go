// Package conductortest provides an in-process conductor for tests.
//
// MockConductor speaks the admin and app websocket protocols over real
// loopback sockets. App interfaces are separate listeners, so a test can
// shut one down and watch clients rediscover a new port.
package conductortest

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/holohash"
)

// ZomeFunc implements a zome function. It receives the msgpack-encoded
// payload and returns a msgpack-encoded result. A returned error is reported
// to the caller as a ribosome error.
type ZomeFunc func(payload []byte) ([]byte, error)

// App is an installed app.
type App struct {
	ID     string
	Status conductor.AppStatus
	Agent  holohash.AgentPubKey
	Cells  []conductor.CellID
}

type appInterface struct {
	port    uint16
	origins conductor.AllowedOrigins
	appID   *string
	server  *httptest.Server
}

type grant struct {
	cellID    conductor.CellID
	secret    []byte
	functions conductor.GrantedFunctions
}

type token struct {
	appID     string
	singleUse bool
}

// MockConductor is a fake conductor for tests.
type MockConductor struct {
	admin    *httptest.Server
	upgrader websocket.Upgrader

	mu         sync.Mutex
	apps       []App
	interfaces []*appInterface
	fns        map[string]ZomeFunc
	grants     map[holohash.AgentPubKey]grant
	tokens     map[string]token
	conns      map[*websocket.Conn]bool
	counts     map[string]int
	failNext   map[string]int
	delays     map[string]time.Duration
}

// NewMockConductor starts a conductor with an admin interface and no apps.
func NewMockConductor() *MockConductor {
	mc := &MockConductor{
		fns:      make(map[string]ZomeFunc),
		grants:   make(map[holohash.AgentPubKey]grant),
		tokens:   make(map[string]token),
		conns:    make(map[*websocket.Conn]bool),
		counts:   make(map[string]int),
		failNext: make(map[string]int),
		delays:   make(map[string]time.Duration),
	}
	mc.upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mc.admin = httptest.NewServer(http.HandlerFunc(mc.serveAdmin))
	return mc
}

// AdminURL returns the ws:// URL of the admin interface.
func (mc *MockConductor) AdminURL() string {
	return "ws" + strings.TrimPrefix(mc.admin.URL, "http")
}

// Close shuts down every interface and connection.
func (mc *MockConductor) Close() {
	mc.DropConnections()
	mc.admin.Close()

	mc.mu.Lock()
	ifaces := mc.interfaces
	mc.interfaces = nil
	mc.mu.Unlock()
	for _, ai := range ifaces {
		ai.server.Close()
	}
}

// InstallApp installs a running app with one provisioned cell per DNA,
// all owned by a fresh agent.
func (mc *MockConductor) InstallApp(id string, dnas ...holohash.DnaHash) App {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	app := App{ID: id, Status: conductor.AppStatusRunning, Agent: holohash.NewAgentPubKey(pub)}
	for _, dna := range dnas {
		app.Cells = append(app.Cells, conductor.CellID{DnaHash: dna, AgentPubKey: app.Agent})
	}

	mc.mu.Lock()
	mc.apps = append(mc.apps, app)
	mc.mu.Unlock()
	return app
}

// SetAppStatus changes the status of every app with the given id.
func (mc *MockConductor) SetAppStatus(id string, status conductor.AppStatus) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for i := range mc.apps {
		if mc.apps[i].ID == id {
			mc.apps[i].Status = status
		}
	}
}

// RegisterZomeFunction installs a function on every cell.
func (mc *MockConductor) RegisterZomeFunction(zome, fn string, f ZomeFunc) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.fns[zome+"/"+fn] = f
}

// AddAppInterface attaches an app interface and returns its port.
func (mc *MockConductor) AddAppInterface(origins conductor.AllowedOrigins, appID *string) uint16 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.attachLocked(origins, appID)
}

func (mc *MockConductor) attachLocked(origins conductor.AllowedOrigins, appID *string) uint16 {
	ai := &appInterface{origins: origins, appID: appID}
	ai.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.serveApp(ai, w, r)
	}))
	_, portStr, _ := net.SplitHostPort(ai.server.Listener.Addr().String())
	port, _ := strconv.ParseUint(portStr, 10, 16)
	ai.port = uint16(port)
	mc.interfaces = append(mc.interfaces, ai)
	return ai.port
}

// CloseAppInterfaces shuts down every app interface, as a conductor restart
// would.
func (mc *MockConductor) CloseAppInterfaces() {
	mc.mu.Lock()
	ifaces := mc.interfaces
	mc.interfaces = nil
	mc.mu.Unlock()

	mc.DropConnections()
	for _, ai := range ifaces {
		ai.server.Close()
	}
}

// DropConnections closes every open websocket, admin and app alike.
func (mc *MockConductor) DropConnections() {
	mc.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(mc.conns))
	for c := range mc.conns {
		conns = append(conns, c)
	}
	mc.conns = make(map[*websocket.Conn]bool)
	mc.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// FailNext makes the next n requests of the given type return an internal
// error.
func (mc *MockConductor) FailNext(op string, n int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.failNext[op] = n
}

// SetDelay delays responses to the given request type.
func (mc *MockConductor) SetDelay(op string, d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.delays[op] = d
}

// Count returns how many times op was received. Besides request types,
// "admin_connect", "app_connect" and "authenticate" are counted.
func (mc *MockConductor) Count(op string) int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.counts[op]
}

// Grants returns the number of capability grants registered.
func (mc *MockConductor) Grants() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.grants)
}

// Interfaces returns the ports of the attached app interfaces.
func (mc *MockConductor) Interfaces() []uint16 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	ports := make([]uint16, 0, len(mc.interfaces))
	for _, ai := range mc.interfaces {
		ports = append(ports, ai.port)
	}
	return ports
}

func (mc *MockConductor) track(c *websocket.Conn, counter string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.conns[c] = true
	mc.counts[counter]++
}

func (mc *MockConductor) untrack(c *websocket.Conn) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.conns, c)
}

// begin counts op and reports whether it should fail, after any delay.
func (mc *MockConductor) begin(op string) bool {
	mc.mu.Lock()
	mc.counts[op]++
	delay := mc.delays[op]
	fail := mc.failNext[op] > 0
	if fail {
		mc.failNext[op]--
	}
	mc.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return fail
}

// connWriter serializes writes on one server-side connection.
type connWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *connWriter) respond(id uint64, respType string, value any) {
	inner, err := msgpack.Marshal(&conductor.Envelope{Type: respType, Value: value})
	if err != nil {
		panic(err)
	}
	frame, err := conductor.EncodeWire(conductor.WireMessage{Type: "response", ID: id, Data: inner})
	if err != nil {
		panic(err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (w *connWriter) fail(id uint64, errType, msg string) {
	w.respond(id, conductor.ErrorResponseType, map[string]any{"type": errType, "value": msg})
}

func (mc *MockConductor) serveAdmin(w http.ResponseWriter, r *http.Request) {
	conn, err := mc.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	mc.track(conn, "admin_connect")
	defer func() {
		mc.untrack(conn)
		conn.Close()
	}()

	cw := &connWriter{conn: conn}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := conductor.DecodeWire(data)
		if err != nil || msg.Type != "request" {
			continue
		}
		go mc.handleAdmin(cw, msg)
	}
}

func (mc *MockConductor) handleAdmin(cw *connWriter, msg conductor.WireMessage) {
	var env conductor.RawEnvelope
	if err := msgpack.Unmarshal(msg.Data, &env); err != nil {
		cw.fail(msg.ID, conductor.ErrorTypeDeserialization, err.Error())
		return
	}
	if mc.begin(env.Type) {
		cw.fail(msg.ID, conductor.ErrorTypeInternal, "injected failure")
		return
	}

	switch env.Type {
	case "list_apps":
		var req struct {
			StatusFilter *string `msgpack:"status_filter"`
		}
		_ = msgpack.Unmarshal(env.Value, &req)
		cw.respond(msg.ID, "apps_listed", mc.listApps(req.StatusFilter))

	case "list_app_interfaces":
		mc.mu.Lock()
		infos := make([]conductor.AppInterfaceInfo, 0, len(mc.interfaces))
		for _, ai := range mc.interfaces {
			infos = append(infos, conductor.AppInterfaceInfo{Port: ai.port, AllowedOrigins: ai.origins, InstalledAppID: ai.appID})
		}
		mc.mu.Unlock()
		cw.respond(msg.ID, "app_interfaces_listed", infos)

	case "attach_app_interface":
		var req conductor.AttachAppInterfacePayload
		if err := msgpack.Unmarshal(env.Value, &req); err != nil {
			cw.fail(msg.ID, conductor.ErrorTypeDeserialization, err.Error())
			return
		}
		mc.mu.Lock()
		port := mc.attachLocked(req.AllowedOrigins, req.InstalledAppID)
		mc.mu.Unlock()
		cw.respond(msg.ID, "app_interface_attached", map[string]any{"port": port})

	case "issue_app_authentication_token":
		var req conductor.IssueAppAuthenticationTokenPayload
		if err := msgpack.Unmarshal(env.Value, &req); err != nil {
			cw.fail(msg.ID, conductor.ErrorTypeDeserialization, err.Error())
			return
		}
		tok := make([]byte, 16)
		_, _ = rand.Read(tok)
		mc.mu.Lock()
		mc.tokens[string(tok)] = token{appID: req.InstalledAppID, singleUse: req.SingleUse}
		mc.mu.Unlock()
		cw.respond(msg.ID, "app_authentication_token_issued", conductor.AppAuthenticationTokenIssued{Token: tok})

	case "grant_zome_call_capability":
		var req conductor.GrantZomeCallCapabilityPayload
		if err := msgpack.Unmarshal(env.Value, &req); err != nil {
			cw.fail(msg.ID, conductor.ErrorTypeDeserialization, err.Error())
			return
		}
		access := req.CapGrant.Access.Assigned
		if access == nil || len(access.Assignees) != 1 {
			cw.fail(msg.ID, conductor.ErrorTypeInternal, "expected assigned access with one assignee")
			return
		}
		key, err := holohash.AgentPubKeyFromBytes(access.Assignees[0])
		if err != nil {
			cw.fail(msg.ID, conductor.ErrorTypeInternal, err.Error())
			return
		}
		mc.mu.Lock()
		mc.grants[key] = grant{cellID: req.CellID, secret: access.Secret, functions: req.CapGrant.Functions}
		mc.mu.Unlock()
		cw.respond(msg.ID, "zome_call_capability_granted", nil)

	default:
		cw.fail(msg.ID, conductor.ErrorTypeInternal, fmt.Sprintf("unsupported request %q", env.Type))
	}
}

func (mc *MockConductor) listApps(filter *string) []conductor.AppInfo {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	infos := make([]conductor.AppInfo, 0, len(mc.apps))
	for _, app := range mc.apps {
		if filter != nil && string(app.Status) != *filter {
			continue
		}
		cells := make([]conductor.CellInfo, 0, len(app.Cells))
		for i := range app.Cells {
			cell := app.Cells[i]
			cells = append(cells, conductor.CellInfo{
				Type:  conductor.CellTypeProvisioned,
				Value: conductor.CellInfoValue{CellID: &cell, Name: fmt.Sprintf("dna%d", i)},
			})
		}
		infos = append(infos, conductor.AppInfo{
			InstalledAppID: app.ID,
			CellInfo:       map[string][]conductor.CellInfo{"main": cells},
			Status:         app.Status,
			AgentPubKey:    app.Agent.Bytes(),
		})
	}
	return infos
}

func (mc *MockConductor) serveApp(ai *appInterface, w http.ResponseWriter, r *http.Request) {
	if !ai.origins.Permits(r.Header.Get("Origin")) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	conn, err := mc.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	mc.track(conn, "app_connect")
	defer func() {
		mc.untrack(conn)
		conn.Close()
	}()

	cw := &connWriter{conn: conn}
	authedApp := ""
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := conductor.DecodeWire(data)
		if err != nil {
			continue
		}

		if authedApp == "" {
			appID, ok := mc.authenticate(ai, msg)
			if !ok {
				return
			}
			authedApp = appID
			continue
		}

		if msg.Type == "request" {
			go mc.handleApp(cw, authedApp, msg)
		}
	}
}

func (mc *MockConductor) authenticate(ai *appInterface, msg conductor.WireMessage) (string, bool) {
	if msg.Type != "authenticate" {
		return "", false
	}
	var req conductor.AppAuthenticationRequest
	if err := msgpack.Unmarshal(msg.Data, &req); err != nil {
		return "", false
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.counts["authenticate"]++
	tok, ok := mc.tokens[string(req.Token)]
	if !ok {
		return "", false
	}
	if tok.singleUse {
		delete(mc.tokens, string(req.Token))
	}
	if ai.appID != nil && *ai.appID != tok.appID {
		return "", false
	}
	return tok.appID, true
}

func (mc *MockConductor) handleApp(cw *connWriter, appID string, msg conductor.WireMessage) {
	var env conductor.RawEnvelope
	if err := msgpack.Unmarshal(msg.Data, &env); err != nil {
		cw.fail(msg.ID, conductor.ErrorTypeDeserialization, err.Error())
		return
	}
	if mc.begin(env.Type) {
		cw.fail(msg.ID, conductor.ErrorTypeInternal, "injected failure")
		return
	}
	if env.Type != "call_zome" {
		cw.fail(msg.ID, conductor.ErrorTypeInternal, fmt.Sprintf("unsupported request %q", env.Type))
		return
	}

	var signed conductor.SignedZomeCall
	if err := msgpack.Unmarshal(env.Value, &signed); err != nil {
		cw.fail(msg.ID, conductor.ErrorTypeDeserialization, err.Error())
		return
	}
	var params conductor.ZomeCallParams
	if err := msgpack.Unmarshal(signed.Bytes, &params); err != nil {
		cw.fail(msg.ID, conductor.ErrorTypeDeserialization, err.Error())
		return
	}

	if err := mc.authorize(appID, signed, params); err != nil {
		cw.fail(msg.ID, conductor.ErrorTypeInternal, err.Error())
		return
	}

	mc.mu.Lock()
	fn, ok := mc.fns[params.ZomeName+"/"+params.FnName]
	mc.mu.Unlock()
	if !ok {
		cw.fail(msg.ID, conductor.ErrorTypeRibosome, fmt.Sprintf("function %s/%s not found", params.ZomeName, params.FnName))
		return
	}

	result, err := fn(params.Payload)
	if err != nil {
		cw.fail(msg.ID, conductor.ErrorTypeRibosome, err.Error())
		return
	}
	cw.respond(msg.ID, "zome_called", result)
}

func (mc *MockConductor) authorize(appID string, signed conductor.SignedZomeCall, params conductor.ZomeCallParams) error {
	provenance, err := holohash.AgentPubKeyFromBytes(params.Provenance)
	if err != nil {
		return fmt.Errorf("bad provenance: %w", err)
	}

	digest := sha512.Sum512(signed.Bytes)
	if !ed25519.Verify(provenance.PublicKey(), digest[:], signed.Signature) {
		return fmt.Errorf("signature verification failed")
	}
	if params.ExpiresAt < time.Now().UnixMicro() {
		return fmt.Errorf("zome call expired")
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	g, ok := mc.grants[provenance]
	if !ok {
		return fmt.Errorf("no capability granted to %s", provenance)
	}
	if g.cellID != params.CellID {
		return fmt.Errorf("capability granted for a different cell")
	}
	if string(g.secret) != string(params.CapSecret) {
		return fmt.Errorf("capability secret mismatch")
	}
	if !g.functions.Permits(params.ZomeName, params.FnName) {
		return fmt.Errorf("function not covered by capability")
	}

	for _, app := range mc.apps {
		if app.ID != appID {
			continue
		}
		for _, cell := range app.Cells {
			if cell == params.CellID {
				return nil
			}
		}
	}
	return fmt.Errorf("cell not part of app %s", appID)
}
