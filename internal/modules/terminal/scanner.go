package terminal

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ScanConfig describes the sweep the scanner performs.
type ScanConfig struct {
	// Range is either a CIDR ("192.168.1.0/24") or a comma-separated host list
	// ("192.168.1.50,192.168.1.51").
	Range string
	// Port is the well-known terminal API port.
	Port int
	// ProbeTimeout bounds each individual connection attempt.
	ProbeTimeout time.Duration
	// Concurrency caps parallel probes.
	Concurrency int
}

func (c ScanConfig) withDefaults() ScanConfig {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 500 * time.Millisecond
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 32
	}
	return c
}

// Scanner finds hosts in an address range that accept TCP connections on the
// terminal port. A failed probe for one host never aborts the sweep; only a
// malformed range is an error.
type Scanner struct {
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewScanner() *Scanner {
	d := &net.Dialer{}
	return &Scanner{dial: d.DialContext}
}

// Scan returns the addresses of reachable hosts.
func (s *Scanner) Scan(ctx context.Context, cfg ScanConfig) ([]string, error) {
	cfg = cfg.withDefaults()
	hosts, err := expandRange(cfg.Range)
	if err != nil {
		return nil, err
	}

	sem := make(chan struct{}, cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var reachable []string

	for _, host := range hosts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			defer func() { <-sem }()

			probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
			defer cancel()
			conn, err := s.dial(probeCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(cfg.Port)))
			if err != nil {
				return // unreachable hosts are simply skipped
			}
			conn.Close()
			mu.Lock()
			reachable = append(reachable, host)
			mu.Unlock()
		}(host)
	}
	wg.Wait()
	return reachable, nil
}

// expandRange turns the configured range into a host list. /24 and smaller
// networks only: sweeping anything wider from a checkout lane is a config error.
func expandRange(r string) ([]string, error) {
	r = strings.TrimSpace(r)
	if r == "" {
		return nil, fmt.Errorf("%w: empty range", ErrInvalidRange)
	}

	if strings.Contains(r, "/") {
		ip, ipnet, err := net.ParseCIDR(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRange, r)
		}
		ones, bits := ipnet.Mask.Size()
		if bits != 32 || ones < 24 {
			return nil, fmt.Errorf("%w: %s (only IPv4 /24 or smaller)", ErrInvalidRange, r)
		}
		var hosts []string
		for cur := ip.Mask(ipnet.Mask); ipnet.Contains(cur); cur = nextIP(cur) {
			last := cur[len(cur)-1]
			if last == 0 || last == 255 { // skip network and broadcast
				continue
			}
			hosts = append(hosts, cur.String())
		}
		return hosts, nil
	}

	var hosts []string
	for _, part := range strings.Split(r, ",") {
		host := strings.TrimSpace(part)
		if host == "" {
			continue
		}
		if net.ParseIP(host) == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRange, host)
		}
		hosts = append(hosts, host)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	return hosts, nil
}

func nextIP(ip net.IP) net.IP {
	next := make(net.IP, len(ip))
	copy(next, ip)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}
