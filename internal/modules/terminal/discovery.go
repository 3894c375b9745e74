package terminal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Discoverer orchestrates the sweep-handshake-detect pipeline that turns
// reachable hosts into verified Terminal records.
type Discoverer struct {
	registry *Registry
	scanner  *Scanner
	client   *Client
	cache    *Cache
	cfg      ScanConfig
	logger   *zap.Logger

	// DefaultCredential is used to handshake with hosts that are not yet in the
	// registry (freshly paired devices announce with the lane provisioning key).
	DefaultCredential string
}

func NewDiscoverer(registry *Registry, scanner *Scanner, client *Client, cache *Cache, cfg ScanConfig, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		registry: registry,
		scanner:  scanner,
		client:   client,
		cache:    cache,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Discover returns verified terminals, serving from cache within the TTL unless
// force is set. Per-host failures are logged and skipped; only a bad scan range
// fails the call.
func (d *Discoverer) Discover(ctx context.Context, force bool) ([]Terminal, error) {
	if !force {
		if cached, ok := d.cache.Get(); ok {
			return cached, nil
		}
	}

	hosts, err := d.scanner.Scan(ctx, d.cfg)
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var found []Terminal

	for _, host := range hosts {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			t, err := d.probeHost(ctx, host)
			if err != nil {
				d.logger.Warn("terminal probe failed",
					zap.String("host", host), zap.Error(err))
				return
			}
			mu.Lock()
			found = append(found, t)
			mu.Unlock()
		}(host)
	}
	wg.Wait()

	for _, t := range found {
		if err := d.registry.Upsert(ctx, t); err != nil {
			d.logger.Warn("persist discovered terminal failed",
				zap.String("terminal_id", t.ID), zap.Error(err))
		}
	}

	d.cache.Put(found)
	return found, nil
}

// probeHost handshakes with one reachable host and runs capability detection.
func (d *Discoverer) probeHost(ctx context.Context, host string) (Terminal, error) {
	candidate := d.knownByAddress(host)
	if candidate.Credential == "" {
		candidate.Credential = d.DefaultCredential
	}
	candidate.Address = host
	if candidate.Port == 0 {
		candidate.Port = d.cfg.Port
	}
	if candidate.ID == "" {
		// Provisional id until capability detection reveals the serial number.
		candidate.ID = DeterministicID(host, "")
	}

	if err := d.client.Connect(ctx, candidate); err != nil {
		return Terminal{}, err
	}

	report, err := d.client.Capabilities(ctx, candidate)
	if err != nil {
		return Terminal{}, err
	}

	candidate.ID = DeterministicID(host, report.SerialNumber)
	candidate.SerialNumber = report.SerialNumber
	candidate.Model = report.Model
	candidate.TerminalType = terminalTypeFromReport(report.TerminalType)
	candidate.Capabilities = capabilitiesFromReport(report.InputMethods)
	candidate.LastVerified = time.Now()
	if candidate.Name == "" {
		candidate.Name = report.Model + " " + report.SerialNumber
	}
	return candidate, nil
}

// VerifyConnection is the cheap liveness check used during discovery and right
// before a transaction is initiated. A busy terminal is alive.
func (d *Discoverer) VerifyConnection(ctx context.Context, t Terminal) bool {
	report, err := d.client.Status(ctx, t)
	if err != nil {
		d.logger.Debug("terminal liveness check failed",
			zap.String("terminal_id", t.ID), zap.Error(err))
		return false
	}
	if report.Status == "offline" {
		return false
	}
	t.LastVerified = time.Now()
	if err := d.registry.Upsert(ctx, t); err != nil {
		d.logger.Debug("record verification failed",
			zap.String("terminal_id", t.ID), zap.Error(err))
	}
	return true
}

func (d *Discoverer) knownByAddress(host string) Terminal {
	for _, t := range d.registry.List() {
		if t.Address == host {
			return t
		}
	}
	return Terminal{}
}

func terminalTypeFromReport(s string) TerminalType {
	if s == "device_based" {
		return TypeDeviceBased
	}
	return TypeDedicated
}

func capabilitiesFromReport(methods []string) Capabilities {
	var caps Capabilities
	for _, m := range methods {
		switch m {
		case "nfc":
			caps.NFC = true
		case "card_present":
			caps.CardPresent = true
		case "chip":
			caps.Chip = true
		case "swipe":
			caps.Swipe = true
		case "tap":
			caps.Tap = true
		}
	}
	return caps
}
