package conductor

import (
	"context"
)

// AdminClient performs control-plane operations on the admin interface.
type AdminClient struct {
	*Client
}

// DialAdmin connects to the admin websocket.
func DialAdmin(ctx context.Context, url string, opts DialOptions) (*AdminClient, error) {
	c, err := Dial(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return &AdminClient{Client: c}, nil
}

// ListApps lists installed apps. A nil filter lists every app.
// The filter is sent as a bare variant name, e.g. "running".
func (a *AdminClient) ListApps(ctx context.Context, filter *AppStatus) ([]AppInfo, error) {
	value := map[string]any{"status_filter": nil}
	if filter != nil {
		value["status_filter"] = string(*filter)
	}

	var apps []AppInfo
	err := a.Request(ctx, "list_apps", value, "apps_listed", &apps)
	return apps, err
}

// ListAppInterfaces lists the attached app interfaces.
func (a *AdminClient) ListAppInterfaces(ctx context.Context) ([]AppInterfaceInfo, error) {
	var ifaces []AppInterfaceInfo
	err := a.Request(ctx, "list_app_interfaces", nil, "app_interfaces_listed", &ifaces)
	return ifaces, err
}

type appInterfaceAttached struct {
	Port uint16 `msgpack:"port"`
}

// AttachAppInterface opens a new app interface and returns its port.
func (a *AdminClient) AttachAppInterface(ctx context.Context, payload AttachAppInterfacePayload) (uint16, error) {
	var resp appInterfaceAttached
	if err := a.Request(ctx, "attach_app_interface", payload, "app_interface_attached", &resp); err != nil {
		return 0, err
	}
	return resp.Port, nil
}

// IssueAppAuthenticationToken issues a token for connecting to an app interface.
func (a *AdminClient) IssueAppAuthenticationToken(ctx context.Context, payload IssueAppAuthenticationTokenPayload) (AppAuthenticationTokenIssued, error) {
	var resp AppAuthenticationTokenIssued
	err := a.Request(ctx, "issue_app_authentication_token", payload, "app_authentication_token_issued", &resp)
	return resp, err
}

// GrantZomeCallCapability registers a capability grant on a cell.
func (a *AdminClient) GrantZomeCallCapability(ctx context.Context, payload GrantZomeCallCapabilityPayload) error {
	return a.Request(ctx, "grant_zome_call_capability", payload, "zome_call_capability_granted", nil)
}
