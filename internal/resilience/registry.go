package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ResourceHealth is the health of one backend resource.
type ResourceHealth struct {
	// Name is the resource path, e.g. "dsar/requests".
	Name string `json:"name"`

	// State is the breaker state of the client serving the resource.
	State string `json:"state"`

	CircuitState gobreaker.State  `json:"-"`
	Counts       gobreaker.Counts `json:"-"`

	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// IsHealthy reports whether the breaker is closed.
func (h *ResourceHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports whether the breaker is half-open.
func (h *ResourceHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports whether the breaker is open.
func (h *ResourceHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks per-resource call outcomes. Several resources may share
// one Client and therefore one breaker.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*trackedResource
	now       func() time.Time
}

type trackedResource struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		resources: make(map[string]*trackedResource),
		now:       time.Now,
	}
}

// Register starts tracking a resource served by client. Registering an
// existing name keeps its history and replaces the client.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.resources[name]; ok {
		res.client = client
		return
	}
	r.resources[name] = &trackedResource{client: client}
}

// Unregister stops tracking a resource.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resources, name)
}

// RecordSuccess records a successful call for a resource.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.resources[name]; ok {
		now := r.now()
		res.lastSuccessAt = &now
	}
}

// RecordFailure records a failed call for a resource.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.resources[name]; ok {
		now := r.now()
		res.lastFailureAt = &now
		if err != nil {
			res.lastError = err.Error()
		}
	}
}

// Observe records the outcome of a call: success when err is nil.
func (r *Registry) Observe(name string, err error) {
	if err != nil {
		r.RecordFailure(name, err)
		return
	}
	r.RecordSuccess(name)
}

// GetHealth returns the health of a resource, or nil if it is not tracked.
func (r *Registry) GetHealth(name string) *ResourceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[name]
	if !ok {
		return nil
	}
	return res.health(name)
}

// GetAllHealth returns the health of every tracked resource, sorted by name.
func (r *Registry) GetAllHealth() []*ResourceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*ResourceHealth, 0, len(r.resources))
	for name, res := range r.resources {
		health = append(health, res.health(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}

// Healthy reports whether no tracked resource has an open breaker.
func (r *Registry) Healthy() bool {
	for _, h := range r.GetAllHealth() {
		if h.IsUnhealthy() {
			return false
		}
	}
	return true
}

// ResourceCount returns the number of tracked resources.
func (r *Registry) ResourceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources)
}

func (t *trackedResource) health(name string) *ResourceHealth {
	state := t.client.CircuitBreakerState()
	return &ResourceHealth{
		Name:          name,
		State:         StateName(state),
		CircuitState:  state,
		Counts:        t.client.CircuitBreakerCounts(),
		LastSuccessAt: t.lastSuccessAt,
		LastFailureAt: t.lastFailureAt,
		LastError:     t.lastError,
	}
}
