package search

import (
	"time"

	"github.com/poiesic/ontoquery/compiler"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/expand"
)

// QueryMonitor provides hooks to observe the query lifecycle.
// A monitor may be shared by concurrent searches, so implementations must
// not keep per-query state between calls.
type QueryMonitor interface {
	Start(query core.Query)
	// Reached is called when a stage completes; elapsed is the time spent
	// since the previous stage.
	Reached(stage core.Stage, elapsed time.Duration)
	AfterExpansion(expansions []expand.Expansion)
	AfterCompile(query *compiler.CompiledQuery)
	// Failed is called instead of Finish when stage could not be completed.
	Failed(stage core.Stage, err error)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of QueryMonitor
type noopMonitor struct{}

var _ QueryMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.Query)                     {}
func (n *noopMonitor) Reached(_ core.Stage, _ time.Duration)  {}
func (n *noopMonitor) AfterExpansion(_ []expand.Expansion)    {}
func (n *noopMonitor) AfterCompile(_ *compiler.CompiledQuery) {}
func (n *noopMonitor) Failed(_ core.Stage, _ error)           {}
func (n *noopMonitor) Finish(_ *Result)                       {}

// multiMonitor fans out every hook to several monitors in order.
type multiMonitor []QueryMonitor

// Monitors combines several monitors into one.
func Monitors(monitors ...QueryMonitor) QueryMonitor {
	var m multiMonitor
	for _, mon := range monitors {
		if mon != nil {
			m = append(m, mon)
		}
	}
	if len(m) == 0 {
		return &noopMonitor{}
	}
	return m
}

func (m multiMonitor) Start(q core.Query) {
	for _, mon := range m {
		mon.Start(q)
	}
}

func (m multiMonitor) Reached(stage core.Stage, elapsed time.Duration) {
	for _, mon := range m {
		mon.Reached(stage, elapsed)
	}
}

func (m multiMonitor) AfterExpansion(expansions []expand.Expansion) {
	for _, mon := range m {
		mon.AfterExpansion(expansions)
	}
}

func (m multiMonitor) AfterCompile(q *compiler.CompiledQuery) {
	for _, mon := range m {
		mon.AfterCompile(q)
	}
}

func (m multiMonitor) Failed(stage core.Stage, err error) {
	for _, mon := range m {
		mon.Failed(stage, err)
	}
}

func (m multiMonitor) Finish(result *Result) {
	for _, mon := range m {
		mon.Finish(result)
	}
}
