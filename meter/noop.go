package meter

import "github.com/ineyio/ledgergate"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ ledgergate.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnTransition(ledgergate.TransitionEvent) {}
