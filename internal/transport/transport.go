// Package transport abstracts the outbound WhatsApp message channel.
package transport

import (
	"context"
	"fmt"
	"strings"
)

// Transport sends a text body to an address and returns an opaque delivery
// identifier assigned by the channel.
type Transport interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// DeliveryError wraps a failed send with the address it targeted.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Normalize canonicalizes a phone-number-like address so it can serve as the
// timer and lookup key. It strips the channel prefix, removes inner spaces
// and restores the leading "+". Returns "" for input with no digits.
func Normalize(address string) string {
	addr := strings.TrimSpace(address)
	if prefix := "whatsapp:"; len(addr) >= len(prefix) && strings.EqualFold(addr[:len(prefix)], prefix) {
		addr = addr[len(prefix):]
	}
	addr = strings.ReplaceAll(addr, " ", "")
	addr = strings.ReplaceAll(addr, "-", "")
	addr = strings.TrimPrefix(addr, "+")

	if addr == "" {
		return ""
	}
	for _, r := range addr {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return "+" + addr
}
