// File: metrics/counters.go
//
// Counters are the gateway's FIX-domain metrics: a handful of atomic
// counters read through api.Control.RegisterDebugProbe closures, the same
// shape examples/stest/server/main.go uses for connection/RPS/throughput
// counters (atomic vars updated on the hot path, read lazily by a
// registered probe) rather than pushed eagerly through SetMetric on every
// event.
package metrics

import (
	"sync/atomic"

	"github.com/momentics/fixgw/api"
)

// Counters holds the gateway's running totals. A single instance is shared
// across every Worker and the Handler so Stats() reports process-wide
// totals rather than per-worker fragments.
type Counters struct {
	ConnectionsActive atomic.Int64
	MessagesParsed    atomic.Int64
	LogonsEchoed      atomic.Int64
	ParseErrors       atomic.Int64
	BytesIn           atomic.Int64
	BytesOut          atomic.Int64
}

// New returns a zeroed Counters.
func New() *Counters {
	return &Counters{}
}

// Register exposes every counter as a named debug probe on ctl. ctl may be
// nil, in which case Register is a no-op.
func (c *Counters) Register(ctl api.Control) {
	if ctl == nil {
		return
	}
	ctl.RegisterDebugProbe("fix.connections.active", func() any { return c.ConnectionsActive.Load() })
	ctl.RegisterDebugProbe("fix.messages.parsed", func() any { return c.MessagesParsed.Load() })
	ctl.RegisterDebugProbe("fix.logons.echoed", func() any { return c.LogonsEchoed.Load() })
	ctl.RegisterDebugProbe("fix.parse.errors", func() any { return c.ParseErrors.Load() })
	ctl.RegisterDebugProbe("fix.bytes.in", func() any { return c.BytesIn.Load() })
	ctl.RegisterDebugProbe("fix.bytes.out", func() any { return c.BytesOut.Load() })
}
