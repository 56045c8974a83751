package host

import "slices"

// SceneGraph is the engine's object graph as seen by the Lifecycle.
type SceneGraph interface {
	// FindHost returns the first live host in the graph for which match
	// reports true, or nil.
	FindHost(match func(*Host) bool) *Host

	// Attach adds h to the graph.
	Attach(h *Host)

	// Destroy removes h from the graph and delivers its OnDestroy callback.
	// Returns false if h was not in the graph.
	Destroy(h *Host) bool
}

// MemoryGraph is an in-process SceneGraph that keeps hosts in attach order.
type MemoryGraph struct {
	hosts []*Host
}

var _ SceneGraph = (*MemoryGraph)(nil)

// NewMemoryGraph creates an empty graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{}
}

// FindHost returns the first live host in attach order that match accepts.
// A nil match accepts every host.
func (g *MemoryGraph) FindHost(match func(*Host) bool) *Host {
	for _, h := range g.hosts {
		if h.Alive() && (match == nil || match(h)) {
			return h
		}
	}
	return nil
}

// Attach adds h to the graph. Attaching the same host twice is a no-op.
func (g *MemoryGraph) Attach(h *Host) {
	if h == nil || slices.Contains(g.hosts, h) {
		return
	}
	g.hosts = append(g.hosts, h)
}

// Destroy removes h, then calls its OnDestroy.
func (g *MemoryGraph) Destroy(h *Host) bool {
	i := slices.Index(g.hosts, h)
	if i < 0 {
		return false
	}
	g.hosts = slices.Delete(g.hosts, i, i+1)
	h.OnDestroy()
	return true
}

// UnloadScene destroys every host not marked persistent and returns how
// many were destroyed.
func (g *MemoryGraph) UnloadScene() int {
	return g.destroyWhere(func(h *Host) bool { return !h.IsPersistent() })
}

// DestroyAll destroys every host, persistent ones included, as happens when
// the process exits.
func (g *MemoryGraph) DestroyAll() int {
	return g.destroyWhere(func(*Host) bool { return true })
}

// Hosts returns the attached hosts in attach order.
func (g *MemoryGraph) Hosts() []*Host {
	return slices.Clone(g.hosts)
}

// Len returns the number of attached hosts.
func (g *MemoryGraph) Len() int {
	return len(g.hosts)
}

func (g *MemoryGraph) destroyWhere(match func(*Host) bool) int {
	n := 0
	for _, h := range slices.Clone(g.hosts) {
		if match(h) && g.Destroy(h) {
			n++
		}
	}
	return n
}
