package search

// Monitor provides hooks to observe the search process.
// Implement this interface to track which strategies ran and why they were passed over.
type Monitor interface {
	Start(q Query)
	StrategyFailed(strategy string, err error)
	StrategyEmpty(strategy string)
	Finish(resp Response, cached bool)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Query)                   {}
func (n *noopMonitor) StrategyFailed(_ string, _ error) {}
func (n *noopMonitor) StrategyEmpty(_ string)          {}
func (n *noopMonitor) Finish(_ Response, _ bool)       {}
