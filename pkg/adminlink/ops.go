package adminlink

import (
	"context"

	"hchttp/gateway/pkg/conductor"
)

// ListRunningApps lists the apps whose status is running.
func (l *Link) ListRunningApps(ctx context.Context) ([]conductor.AppInfo, error) {
	running := conductor.AppStatusRunning
	var apps []conductor.AppInfo
	err := l.do(ctx, "list_apps", func(ctx context.Context, c AdminConn) error {
		var err error
		apps, err = c.ListApps(ctx, &running)
		return err
	})
	return apps, err
}

// ListAppInterfaces lists the attached app interfaces.
func (l *Link) ListAppInterfaces(ctx context.Context) ([]conductor.AppInterfaceInfo, error) {
	var ifaces []conductor.AppInterfaceInfo
	err := l.do(ctx, "list_app_interfaces", func(ctx context.Context, c AdminConn) error {
		var err error
		ifaces, err = c.ListAppInterfaces(ctx)
		return err
	})
	return ifaces, err
}

// AttachAppInterface attaches an app interface on a conductor-chosen port
// that accepts only origin. A nil appID makes the interface usable by any app.
func (l *Link) AttachAppInterface(ctx context.Context, origin string, appID *string) (uint16, error) {
	payload := conductor.AttachAppInterfacePayload{
		AllowedOrigins: conductor.OnlyOrigins(origin),
		InstalledAppID: appID,
	}
	var port uint16
	err := l.do(ctx, "attach_app_interface", func(ctx context.Context, c AdminConn) error {
		var err error
		port, err = c.AttachAppInterface(ctx, payload)
		return err
	})
	return port, err
}

// IssueAppAuthenticationToken issues a single-use token for appID.
func (l *Link) IssueAppAuthenticationToken(ctx context.Context, appID string) ([]byte, error) {
	payload := conductor.IssueAppAuthenticationTokenPayload{
		InstalledAppID: appID,
		ExpirySeconds:  TokenExpirySeconds,
		SingleUse:      true,
	}
	var token []byte
	err := l.do(ctx, "issue_app_authentication_token", func(ctx context.Context, c AdminConn) error {
		issued, err := c.IssueAppAuthenticationToken(ctx, payload)
		token = issued.Token
		return err
	})
	return token, err
}

// AuthorizeSigningCredentials grants the zome call capability described by
// payload so calls signed with its assignee key are accepted.
func (l *Link) AuthorizeSigningCredentials(ctx context.Context, payload conductor.GrantZomeCallCapabilityPayload) error {
	return l.do(ctx, "grant_zome_call_capability", func(ctx context.Context, c AdminConn) error {
		return c.GrantZomeCallCapability(ctx, payload)
	})
}

// Ping checks that the admin interface answers requests.
func (l *Link) Ping(ctx context.Context) error {
	_, err := l.ListAppInterfaces(ctx)
	return err
}
