package sim

import (
	"fmt"
	"sort"
	"sync"
)

// PolicyState is the private per-instance state a policy builds in Offline.
// Two instances never share a PolicyState.
type PolicyState any

// Policy is the contract every scheduler implements.
//
// Offline runs once before the first tick: it performs admission (returning
// a KindNotSchedulable or KindMoreThanOneCPU error to refuse the task set)
// and builds the policy's private state. Schedule is called once per tick
// and must leave every CPU either idle or running a released job. Close
// releases whatever Offline built.
type Policy interface {
	Name() string
	Offline(inst *Instance) (PolicyState, error)
	Schedule(inst *Instance, st PolicyState) error
	Close(inst *Instance, st PolicyState) error
}

// PolicyFactory creates a fresh Policy value.
type PolicyFactory func() Policy

var (
	policyMu       sync.RWMutex
	policyRegistry = map[string]PolicyFactory{}
)

// RegisterPolicy adds a policy under id. Sub-packages call it from init();
// registering the same id twice panics.
func RegisterPolicy(id string, factory PolicyFactory) {
	policyMu.Lock()
	defer policyMu.Unlock()
	if factory == nil {
		panic(fmt.Sprintf("RegisterPolicy: nil factory for %q", id))
	}
	if _, dup := policyRegistry[id]; dup {
		panic(fmt.Sprintf("RegisterPolicy: policy %q already registered", id))
	}
	policyRegistry[id] = factory
}

// IsValidPolicy reports whether id names a registered policy.
func IsValidPolicy(id string) bool {
	policyMu.RLock()
	defer policyMu.RUnlock()
	_, ok := policyRegistry[id]
	return ok
}

// PolicyIDs returns the registered ids in lexical order.
func PolicyIDs() []string {
	policyMu.RLock()
	defer policyMu.RUnlock()
	ids := make([]string, 0, len(policyRegistry))
	for id := range policyRegistry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewPolicy instantiates the policy registered under id.
func NewPolicy(id string) (Policy, error) {
	policyMu.RLock()
	factory, ok := policyRegistry[id]
	policyMu.RUnlock()
	if !ok {
		return nil, NewError(KindUnknownScheduler, "unknown scheduler %q (valid: %v)", id, PolicyIDs())
	}
	p := factory()
	if len(p.Name()) < 2 {
		return nil, NewError(KindSchedulerNameTooShort, "scheduler %q", id)
	}
	return p, nil
}
