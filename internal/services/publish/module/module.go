// Package module implements the publish module
package module

import (
	"relay/internal/modkit"
	pubdom "relay/internal/services/publish/domain"
	"relay/internal/services/publish/service"
)

// Ports exposed by the publish module
type Ports struct {
	Publisher pubdom.Publisher
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new publish module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("publish"),
	}, opts...)...)

	// Basic guardrails against incorrect wiring
	ports, ok := b.PortsAny().(pubdom.Ports)
	if !ok {
		panic("publish module: expected WithPorts(publish/domain.Ports)")
	}
	if ports.Messenger == nil {
		panic("publish module: Ports missing Messenger")
	}

	cfg := FromConfig(deps.Cfg)

	svc := service.New(
		deps.Log,
		ports.Messenger,
		ports.Wall,
		cfg.Channel,
		cfg.GroupID,
		cfg.DryRun,
	)

	m := &Module{deps: deps}
	m.ports = Ports{Publisher: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "publish" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }
