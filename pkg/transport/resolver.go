package transport

import (
	"context"
	"net"
	"strings"
)

// Endpoint is one connectable candidate returned by a Resolver.
type Endpoint struct {
	Network string // "tcp4" or "tcp6"
	Address string // ip:port
}

// Resolver maps a host and port to connectable endpoints, best first.
type Resolver interface {
	Resolve(ctx context.Context, host, port string) ([]Endpoint, error)
}

// NetResolver resolves through a *net.Resolver.
type NetResolver struct {
	Resolver *net.Resolver
	// Network restricts the address family: "tcp" (any), "tcp4" or "tcp6".
	Network string
}

// Resolve implements Resolver.
func (r *NetResolver) Resolve(ctx context.Context, host, port string) ([]Endpoint, error) {
	resolver := r.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	network := "ip"
	switch r.Network {
	case "tcp4":
		network = "ip4"
	case "tcp6":
		network = "ip6"
	}

	ips, err := resolver.LookupIP(ctx, network, host)
	if err != nil {
		return nil, err
	}
	return endpoints(ips, port), nil
}

// StaticResolver answers from a fixed host table, resembling /etc/hosts, and
// falls back to Next for hosts it does not know.
type StaticResolver struct {
	Hosts map[string]string
	Next  Resolver
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(ctx context.Context, host, port string) ([]Endpoint, error) {
	if addr, ok := r.Hosts[strings.ToLower(host)]; ok {
		if ip := net.ParseIP(addr); ip != nil {
			return endpoints([]net.IP{ip}, port), nil
		}
		host = addr
	}
	if r.Next == nil {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return r.Next.Resolve(ctx, host, port)
}

func endpoints(ips []net.IP, port string) []Endpoint {
	out := make([]Endpoint, 0, len(ips))
	for _, ip := range ips {
		network := "tcp6"
		if ip.To4() != nil {
			network = "tcp4"
		}
		out = append(out, Endpoint{Network: network, Address: net.JoinHostPort(ip.String(), port)})
	}
	return out
}
