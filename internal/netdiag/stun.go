// Package netdiag holds the one-shot checks behind `hostwatch doctor`.
package netdiag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/stun/v3"
)

const (
	NATTypeUnknown          = "unknown"
	NATTypeSymmetric        = "symmetric"
	NATTypeConeOrRestricted = "cone_or_restricted"
)

// ErrNoSTUNServers is returned by PublicAddress without servers.
var ErrNoSTUNServers = errors.New("no STUN servers configured")

// PublicAddrResult is the outcome of a STUN lookup.
type PublicAddrResult struct {
	Addr    string   `json:"addr"`
	NATType string   `json:"nat_type"`
	Mapped  []string `json:"mapped"`
	Errors  []string `json:"errors,omitempty"`
}

// PublicAddress asks every server for the mapped address of this machine.
// The lookup fails only when no server answers.
func PublicAddress(ctx context.Context, servers []string, timeout time.Duration) (PublicAddrResult, error) {
	res := PublicAddrResult{NATType: NATTypeUnknown}
	if len(servers) == 0 {
		return res, ErrNoSTUNServers
	}

	var lastErr error
	for _, server := range servers {
		addr, err := probeServer(ctx, server, timeout)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", server, err)
			res.Errors = append(res.Errors, lastErr.Error())
			continue
		}
		res.Mapped = append(res.Mapped, addr)
	}

	if len(res.Mapped) == 0 {
		return res, lastErr
	}
	res.Addr = res.Mapped[0]
	res.NATType = Classify(res.Mapped)
	return res, nil
}

// Classify infers NAT type by comparing mapped addresses from multiple servers.
func Classify(addrs []string) string {
	if len(addrs) < 2 {
		return NATTypeUnknown
	}
	for _, addr := range addrs[1:] {
		if addr != addrs[0] {
			return NATTypeSymmetric
		}
	}
	return NATTypeConeOrRestricted
}

func probeServer(ctx context.Context, server string, timeout time.Duration) (string, error) {
	uriStr := strings.TrimSpace(server)
	if uriStr == "" {
		return "", fmt.Errorf("empty STUN server")
	}
	if !strings.HasPrefix(uriStr, "stun:") {
		uriStr = "stun:" + uriStr
	}

	uri, err := stun.ParseURI(uriStr)
	if err != nil {
		return "", err
	}

	client, err := stun.DialURI(uri, &stun.DialConfig{})
	if err != nil {
		return "", err
	}
	defer client.Close()

	msg := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	result := make(chan stun.XORMappedAddress, 1)
	fail := make(chan error, 2)

	go func() {
		err := client.Do(msg, func(ev stun.Event) {
			if ev.Error != nil {
				fail <- ev.Error
				return
			}
			var addr stun.XORMappedAddress
			if err := addr.GetFrom(ev.Message); err != nil {
				fail <- err
				return
			}
			result <- addr
		})
		if err != nil {
			fail <- err
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case addr := <-result:
		return addr.String(), nil
	case err := <-fail:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
