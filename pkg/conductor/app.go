package conductor

import (
	"context"
	"fmt"
)

// AppClient performs zome calls on an authenticated app interface.
type AppClient struct {
	*Client
}

// DialApp connects to an app interface and authenticates with token.
func DialApp(ctx context.Context, url string, opts DialOptions, token []byte) (*AppClient, error) {
	c, err := Dial(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	if err := c.Authenticate(ctx, AppAuthenticationRequest{Token: token}); err != nil {
		c.Close()
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return &AppClient{Client: c}, nil
}

// CallZome sends a signed zome call and returns the msgpack-encoded result.
func (a *AppClient) CallZome(ctx context.Context, call SignedZomeCall) ([]byte, error) {
	var result []byte
	if err := a.Request(ctx, "call_zome", call, "zome_called", &result); err != nil {
		return nil, err
	}
	return result, nil
}
