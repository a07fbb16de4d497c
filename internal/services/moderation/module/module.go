// Package module implements the moderation module
package module

import (
	"relay/internal/modkit"
	"relay/internal/services/moderation/domain"
	"relay/internal/services/moderation/service"
)

// Ports exposed by the moderation module
type Ports struct {
	Workflow domain.WorkflowPort
}

// Module implements modkit.Module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New constructs a new moderation module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("moderation"),
	}, opts...)...)

	// Basic guardrails against incorrect wiring
	ports, ok := b.PortsAny().(domain.Ports)
	if !ok {
		panic("moderation module: expected WithPorts(moderation/domain.Ports)")
	}
	if ports.Store == nil || ports.Messenger == nil || ports.Publisher == nil {
		panic("moderation module: Ports missing Store, Messenger or Publisher")
	}

	cfg := FromConfig(deps.Cfg)

	svc := service.New(
		deps.Log,
		ports.Store,
		ports.Messenger,
		ports.Publisher,
		ports.Feed,
		ports.Site,
		service.Settings{
			OwnerID:            cfg.OwnerID,
			Moderators:         cfg.Moderators,
			ModerationRequired: cfg.ModerationRequired,
		},
	)

	m := &Module{deps: deps}
	m.ports = Ports{Workflow: svc}
	return m
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "moderation" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }
