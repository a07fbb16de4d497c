// Package module implements the watch module
package module

import (
	"relay/internal/modkit"
	"relay/internal/services/watch/domain"
	"relay/internal/services/watch/service"
)

// Ports exposed by the watch module
type Ports struct {
	Runner domain.Runner
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new watch module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("watch"),
	}, opts...)...)

	// Basic guardrails against incorrect wiring
	ports, ok := b.PortsAny().(domain.Ports)
	if !ok {
		panic("watch module: expected WithPorts(watch/domain.Ports)")
	}
	if ports.Workflow == nil {
		panic("watch module: Ports missing Workflow")
	}

	cfg := FromConfig(deps.Cfg)
	if cfg.WatchVK && ports.Longpoll == nil {
		panic("watch module: vk source enabled but no longpoll port wired")
	}

	svc := service.New(deps.Log, ports.Workflow, ports, service.Settings{
		WatchVK:          cfg.WatchVK,
		WatchSite:        cfg.WatchSite,
		OwnerID:          cfg.OwnerID,
		FallbackInterval: cfg.FallbackInterval,
		SiteInterval:     cfg.SiteInterval,
		UpdatesTimeout:   cfg.UpdatesTimeout,
	})

	m := &Module{deps: deps}
	m.ports = Ports{Runner: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "watch" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }
