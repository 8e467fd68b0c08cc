// Package discover finds extra device context the ARP table cannot
// provide, using multicast DNS and AirPlay metadata endpoints.
package discover

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"

	"github.com/ljay-net/NetworkMonitor/internal/registry"
)

const browseTimeout = 5 * time.Second

// Browser collects mDNS service announcements from the local network.
type Browser struct {
	serviceTypes []string
	log          zerolog.Logger
}

// NewBrowser returns a Browser over the given service types.
func NewBrowser(serviceTypes []string, log zerolog.Logger) *Browser {
	return &Browser{
		serviceTypes: serviceTypes,
		log:          log.With().Str("component", "mdns").Logger(),
	}
}

// Browse queries every configured service type and returns the hits seen
// within the browse window. Entries without an IPv4 address are dropped.
func (b *Browser) Browse(ctx context.Context) []registry.ServiceHit {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		b.log.Warn().Err(err).Msg("mDNS resolver unavailable")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, browseTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		hits []registry.ServiceHit
		wg   sync.WaitGroup
	)

	for _, service := range b.serviceTypes {
		wg.Add(1)
		go func(service string) {
			defer wg.Done()

			entries := make(chan *zeroconf.ServiceEntry, 16)
			go func() {
				for entry := range entries {
					hit, ok := hitFromEntry(service, entry)
					if !ok {
						continue
					}
					mu.Lock()
					hits = append(hits, hit)
					mu.Unlock()
				}
			}()

			if err := resolver.Browse(ctx, service, "local.", entries); err != nil {
				b.log.Debug().Err(err).Str("service", service).Msg("browse failed")
				return
			}
			<-ctx.Done()
		}(service)
	}

	wg.Wait()
	return hits
}

func hitFromEntry(service string, entry *zeroconf.ServiceEntry) (registry.ServiceHit, bool) {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return registry.ServiceHit{}, false
	}

	name := entry.Instance
	// Workstation announcements carry a "name @ host" suffix.
	if idx := strings.Index(name, "@"); idx != -1 {
		name = strings.TrimSpace(name[:idx])
	}

	return registry.ServiceHit{
		Name:        name,
		IP:          entry.AddrIPv4[0].String(),
		ServiceType: service,
	}, true
}
