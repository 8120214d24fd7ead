package apppool

import (
	"sync"
	"time"

	"hchttp/gateway/pkg/conductor"
	"hchttp/gateway/pkg/signing"
)

// Slot is an open, authenticated connection to an app interface together
// with the credentials provisioned for it.
type Slot struct {
	AppID     string
	Port      uint16
	Conn      *conductor.AppClient
	Signer    *signing.Signer
	CreatedAt time.Time

	fromCache bool
	closeOnce sync.Once
}

// Close closes the connection. It is safe to call more than once.
func (s *Slot) Close() {
	s.closeOnce.Do(func() {
		if s.Conn != nil {
			s.Conn.Close()
		}
	})
}
