package authorization

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Capability is one permission bit. A CapabilitySet is resolved once per
// request and checked by handlers before any mutation.
type Capability uint32

const (
	CapCatalogView Capability = 1 << iota
	CapCatalogManage
	CapSalesView
	CapSalesManage
	CapFinanceManage
	CapTasksView
	CapTasksManage
	CapMessaging
	CapGitHubSync
	CapGitHubAdmin
	CapUsersManage
)

var capabilityNames = map[Capability]string{
	CapCatalogView:   "catalog.view",
	CapCatalogManage: "catalog.manage",
	CapSalesView:     "sales.view",
	CapSalesManage:   "sales.manage",
	CapFinanceManage: "finance.manage",
	CapTasksView:     "tasks.view",
	CapTasksManage:   "tasks.manage",
	CapMessaging:     "messaging",
	CapGitHubSync:    "github.sync",
	CapGitHubAdmin:   "github.admin",
	CapUsersManage:   "users.manage",
}

var (
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidActor      = errors.New("invalid_actor")
	ErrUnknownCapability = errors.New("unknown_capability")
)

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCapability maps a policy object back to its bit.
func ParseCapability(name string) (Capability, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for capability, known := range capabilityNames {
		if known == name {
			return capability, nil
		}
	}
	return 0, ErrUnknownCapability
}

type CapabilitySet uint32

// AllCapabilities is granted to superusers.
func AllCapabilities() CapabilitySet {
	var set CapabilitySet
	for capability := range capabilityNames {
		set = set.With(capability)
	}
	return set
}

func (s CapabilitySet) With(c Capability) CapabilitySet { return s | CapabilitySet(c) }

func (s CapabilitySet) Has(c Capability) bool { return s&CapabilitySet(c) != 0 }

// Require returns ErrForbidden unless every capability is present.
func (s CapabilitySet) Require(caps ...Capability) error {
	for _, c := range caps {
		if !s.Has(c) {
			return ErrForbidden
		}
	}
	return nil
}

// Names lists the capabilities in the set, sorted.
func (s CapabilitySet) Names() []string {
	names := make([]string, 0, len(capabilityNames))
	for capability, name := range capabilityNames {
		if s.Has(capability) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type capabilityKey struct{}

func WithCapabilities(ctx context.Context, set CapabilitySet) context.Context {
	return context.WithValue(ctx, capabilityKey{}, set)
}

// CapabilitiesFromContext returns the empty set when nothing was resolved.
func CapabilitiesFromContext(ctx context.Context) CapabilitySet {
	if set, ok := ctx.Value(capabilityKey{}).(CapabilitySet); ok {
		return set
	}
	return 0
}
