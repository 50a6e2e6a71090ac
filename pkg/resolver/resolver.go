// Package resolver derives provider endpoints from an address using direct
// discovery: the provider component is the host to contact. No DNS lookup is
// performed.
package resolver

import (
	"net"
	"strings"

	"github.com/welldanyogia/aap/pkg/address"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// DiscoveryDirect is the only discovery method implemented.
const DiscoveryDirect = "direct"

// Endpoints are the URLs a client needs to talk to an address's provider.
// DiscoveryMethod is informational only.
type Endpoints struct {
	Provider        string `json:"provider"`
	ResolveURL      string `json:"resolve_url"`
	InboxURL        string `json:"inbox_url"`
	DiscoveryMethod string `json:"discovery_method"`
}

// Scheme returns "http" for providers on localhost or a loopback literal and
// "https" for everything else. It looks only at the provider string.
func Scheme(provider string) string {
	if isLoopback(hostOf(provider)) {
		return "http"
	}
	return "https"
}

// BaseURL returns scheme://provider. IPv6 literals are bracketed.
func BaseURL(provider string) string {
	provider = strings.ToLower(provider)
	host := provider
	if ip := net.ParseIP(provider); ip != nil && strings.Contains(provider, ":") {
		host = "[" + provider + "]"
	}
	return Scheme(provider) + "://" + host
}

// ResolveProviderEndpoints derives the endpoints of addr's provider.
func ResolveProviderEndpoints(addr address.Address) Endpoints {
	base := BaseURL(addr.Provider)
	return Endpoints{
		Provider:        addr.Provider,
		ResolveURL:      base + protocol.PathResolve,
		InboxURL:        base + protocol.PathInbox,
		DiscoveryMethod: DiscoveryDirect,
	}
}

// ResolveProviderEndpointsString parses raw and derives its endpoints.
func ResolveProviderEndpointsString(raw string) (Endpoints, error) {
	addr, err := address.Parse(raw)
	if err != nil {
		return Endpoints{}, err
	}
	return ResolveProviderEndpoints(addr), nil
}

func hostOf(provider string) string {
	provider = strings.ToLower(provider)
	if host, _, err := net.SplitHostPort(provider); err == nil {
		return host
	}
	// bracketed IPv6 without port
	return strings.TrimSuffix(strings.TrimPrefix(provider, "["), "]")
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
