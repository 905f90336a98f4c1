// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FrameHUD Contributors

package plugin

import (
	"sort"

	"github.com/samber/oops"
)

// Resolution is the outcome of one dependency resolution pass.
type Resolution struct {
	// LoadOrder is a total order over every plugin that survived resolution.
	// Dependencies come strictly before dependents; ties break by
	// registration order, then name.
	LoadOrder []string
	// Cycles lists hard-dependency cycles found, one member set each, in
	// registration order.
	Cycles [][]string
	// Failures maps plugin names failed during this pass to their cause.
	Failures map[string]error
}

// edgeKind distinguishes hard dependency edges from inferred soft edges.
type edgeKind uint8

const (
	edgeHard edgeKind = iota
	edgeSoft
)

type edge struct {
	to   string
	kind edgeKind
}

// resolver builds the dependency graph for the current registry contents and
// computes a deterministic load order.
type resolver struct {
	reg *Registry
}

// resolve runs cycle detection, missing-dependency cascade, and topological
// ordering. It marks failed records in the registry and returns the outcome.
//
// Hard cycles fail only their members; plugins outside the cycle resolve
// normally. Soft edges never cause a failure: a soft edge that would close a
// cycle is dropped deterministically instead.
func (rv *resolver) resolve() Resolution {
	res := Resolution{Failures: make(map[string]error)}

	candidates := rv.candidates()

	// Hard-edge cycles first, so cascade sees cycle members as failed.
	for _, cycle := range rv.hardCycles(candidates) {
		res.Cycles = append(res.Cycles, cycle)
		err := oops.In("resolver").
			With("cycle", cycle).
			Wrap(ErrCircularDependency)
		for _, name := range cycle {
			rv.fail(name, err, res.Failures)
		}
	}

	// Missing or failed hard dependencies cascade transitively.
	rv.cascadeMissing(res.Failures)
	candidates = rv.candidates()

	res.LoadOrder = rv.sortCandidates(candidates)
	return res
}

// candidates returns the names eligible for resolution (everything not
// failed or unloaded), in registration order.
func (rv *resolver) candidates() []string {
	var names []string
	for _, name := range rv.reg.names {
		rec := rv.reg.records[name]
		if rec.state == StateFailed || rec.state == StateUnloaded {
			continue
		}
		names = append(names, name)
	}
	return names
}

func (rv *resolver) fail(name string, err error, failures map[string]error) {
	rec := rv.reg.records[name]
	rec.state = StateFailed
	rec.failure = err
	failures[name] = err
}

// hardCycles finds strongly connected components of size > 1 in the
// hard-edge subgraph. Members are reported in registration order.
func (rv *resolver) hardCycles(candidates []string) [][]string {
	inSet := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		inSet[name] = true
	}

	// Tarjan's algorithm, iterating roots in registration order so component
	// discovery is deterministic.
	index := make(map[string]int, len(candidates))
	lowlink := make(map[string]int, len(candidates))
	onStack := make(map[string]bool, len(candidates))
	var stack []string
	var cycles [][]string
	next := 0

	var strongconnect func(name string)
	strongconnect = func(name string) {
		index[name] = next
		lowlink[name] = next
		next++
		stack = append(stack, name)
		onStack[name] = true

		// Out-edges: this plugin is a hard dependency of its dependents.
		for _, dep := range rv.hardDependents(name, inSet) {
			if _, seen := index[dep]; !seen {
				strongconnect(dep)
				if lowlink[dep] < lowlink[name] {
					lowlink[name] = lowlink[dep]
				}
			} else if onStack[dep] && index[dep] < lowlink[name] {
				lowlink[name] = index[dep]
			}
		}

		if lowlink[name] == index[name] {
			var comp []string
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				comp = append(comp, top)
				if top == name {
					break
				}
			}
			if len(comp) > 1 {
				sort.Slice(comp, func(i, j int) bool {
					return rv.reg.records[comp[i]].order < rv.reg.records[comp[j]].order
				})
				cycles = append(cycles, comp)
			}
		}
	}

	for _, name := range candidates {
		if _, seen := index[name]; !seen {
			strongconnect(name)
		}
	}

	// Report cycles ordered by their earliest-registered member.
	sort.Slice(cycles, func(i, j int) bool {
		return rv.reg.records[cycles[i][0]].order < rv.reg.records[cycles[j][0]].order
	})
	return cycles
}

// hardDependents returns the candidates that declare name as a hard
// dependency, in registration order.
func (rv *resolver) hardDependents(name string, inSet map[string]bool) []string {
	var out []string
	for _, other := range rv.reg.names {
		if !inSet[other] || other == name {
			continue
		}
		for _, dep := range rv.reg.records[other].def.Meta.Dependencies {
			if dep == name {
				out = append(out, other)
				break
			}
		}
	}
	return out
}

// cascadeMissing fails every candidate whose hard dependency is absent from
// the registry or already failed, and propagates transitively to dependents.
func (rv *resolver) cascadeMissing(failures map[string]error) {
	for changed := true; changed; {
		changed = false
		for _, name := range rv.candidates() {
			rec := rv.reg.records[name]
			for _, dep := range rec.def.Meta.Dependencies {
				depRec, registered := rv.reg.records[dep]
				if registered && depRec.state != StateFailed && depRec.state != StateUnloaded {
					continue
				}
				err := oops.In("resolver").
					With("plugin", name).
					With("dependency", dep).
					With("registered", registered).
					Wrap(ErrMissingDependency)
				rv.fail(name, err, failures)
				changed = true
				break
			}
		}
	}
}

// sortCandidates performs the deterministic topological sort over the
// combined hard+soft graph. The ready set always pops the lowest
// registration index, so identical registries produce identical orders.
func (rv *resolver) sortCandidates(candidates []string) []string {
	inSet := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		inSet[name] = true
	}

	adj := make(map[string][]edge, len(candidates))
	inHard := make(map[string]int, len(candidates))
	inSoft := make(map[string]int, len(candidates))
	addEdge := func(from, to string, kind edgeKind) {
		for _, e := range adj[from] {
			if e.to == to {
				return // hard edge already present wins over soft
			}
		}
		adj[from] = append(adj[from], edge{to: to, kind: kind})
		if kind == edgeHard {
			inHard[to]++
		} else {
			inSoft[to]++
		}
	}

	providers := rv.enabledProviders(candidates)
	for _, name := range candidates {
		rec := rv.reg.records[name]
		// Hard edges point dependency → dependent.
		for _, dep := range rec.def.Meta.Dependencies {
			if inSet[dep] {
				addEdge(dep, name, edgeHard)
			}
		}
		// Soft edges point provider → consumer, one per enabled provider of
		// each consumed key. Two providers of the same key both come before
		// the consumer, keeping their mutual registration order.
		for _, key := range rec.def.Meta.Consumes {
			for _, provider := range providers[key] {
				if provider != name {
					addEdge(provider, name, edgeSoft)
				}
			}
		}
	}

	ready := rv.readyHeap(candidates, inHard, inSoft)
	emitted := make(map[string]bool, len(candidates))
	var order []string

	for len(order) < len(candidates) {
		name, ok := ready.pop()
		if !ok {
			// Only soft edges can stall: the hard subgraph is acyclic here.
			// Release the earliest-registered node blocked purely by soft
			// edges, dropping those edges.
			name, ok = rv.earliestSoftBlocked(candidates, emitted, inHard)
			if !ok {
				break // defensive; cannot happen after cycle removal
			}
		}
		if emitted[name] {
			continue
		}
		emitted[name] = true
		order = append(order, name)

		for _, e := range adj[name] {
			if emitted[e.to] {
				continue
			}
			if e.kind == edgeHard {
				inHard[e.to]--
			} else if inSoft[e.to] > 0 {
				inSoft[e.to]--
			}
			if inHard[e.to] == 0 && inSoft[e.to] == 0 {
				ready.push(e.to)
			}
		}
	}
	return order
}

// enabledProviders maps each data-bus key to the enabled candidates that
// provide it, in registration order. Disabled providers contribute no soft
// edges.
func (rv *resolver) enabledProviders(candidates []string) map[string][]string {
	providers := make(map[string][]string)
	for _, name := range candidates {
		rec := rv.reg.records[name]
		if !rec.cfg.Enabled {
			continue
		}
		for _, key := range rec.def.Meta.Provides {
			providers[key] = append(providers[key], name)
		}
	}
	return providers
}

// earliestSoftBlocked finds the unemitted node with the lowest registration
// index whose unmet in-edges are all soft.
func (rv *resolver) earliestSoftBlocked(candidates []string, emitted map[string]bool, inHard map[string]int) (string, bool) {
	for _, name := range candidates {
		if !emitted[name] && inHard[name] == 0 {
			return name, true
		}
	}
	return "", false
}

// orderedReady is a ready set that always yields the lowest registration
// index first, then name (names are unique, so this is a total order).
type orderedReady struct {
	reg   *Registry
	names []string
}

func (rv *resolver) readyHeap(candidates []string, inHard, inSoft map[string]int) *orderedReady {
	r := &orderedReady{reg: rv.reg}
	for _, name := range candidates {
		if inHard[name] == 0 && inSoft[name] == 0 {
			r.push(name)
		}
	}
	return r
}

func (r *orderedReady) push(name string) {
	r.names = append(r.names, name)
	sort.Slice(r.names, func(i, j int) bool {
		oi, oj := r.reg.records[r.names[i]].order, r.reg.records[r.names[j]].order
		if oi != oj {
			return oi < oj
		}
		return r.names[i] < r.names[j]
	})
}

func (r *orderedReady) pop() (string, bool) {
	if len(r.names) == 0 {
		return "", false
	}
	name := r.names[0]
	r.names = r.names[1:]
	return name, true
}
