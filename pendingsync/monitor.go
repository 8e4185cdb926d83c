package pendingsync

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Prober answers whether the remote side is reachable right now.
type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber probes a lightweight health endpoint. Any answered request
// counts as online; only transport errors mean offline.
type HTTPProber struct {
	client *resty.Client
	url    string
}

func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		client: resty.New().SetTimeout(timeout).SetRetryCount(0),
		url:    url,
	}
}

func (p *HTTPProber) Probe(ctx context.Context) bool {
	resp, err := p.client.R().SetContext(ctx).Head(p.url)
	return err == nil && resp.StatusCode() < 500
}

// Monitor tracks the connectivity flag and fires edge callbacks. Online()
// is a cheap snapshot safe from any goroutine; callbacks fire only on
// transitions, never on steady state.
type Monitor struct {
	logger    *logrus.Logger
	prober    Prober
	online    atomic.Bool
	onOnline  func(ctx context.Context)
	onOffline func()
}

// NewMonitor starts in the offline state, so the first successful probe
// counts as an offline-to-online edge and flushes anything queued while the
// process was down.
func NewMonitor(logger *logrus.Logger, prober Prober, onOnline func(ctx context.Context), onOffline func()) *Monitor {
	return &Monitor{
		logger:    logger,
		prober:    prober,
		onOnline:  onOnline,
		onOffline: onOffline,
	}
}

func (m *Monitor) Online() bool {
	return m.online.Load()
}

// SetOnline records the flag and fires the matching edge callback when the
// value changed. External hints (load balancer, manual override) enter here
// as well as probe results.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	if m.online.Swap(online) == online {
		return
	}
	if online {
		m.logger.Info("tilkopling oppe")
		if m.onOnline != nil {
			m.onOnline(ctx)
		}
		return
	}
	m.logger.Warn("tilkopling nede")
	if m.onOffline != nil {
		m.onOffline()
	}
}

// Poll runs one probe and records the result.
func (m *Monitor) Poll(ctx context.Context) {
	m.SetOnline(ctx, m.prober.Probe(ctx))
}

// Run polls on the given interval until the context is cancelled. Meant to
// run on its own goroutine from main.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.Poll(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}
