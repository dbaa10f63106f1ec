package operator

import (
	"context"
	"reflect"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/ports"
)

// Parallel calls every child concurrently against the same input Record
// and merges their outputs. It is grounded on the teacher's
// application.Layer (bounded-concurrency goroutine fan-out via
// golang.org/x/sync/errgroup), but its merge policy differs by design:
// spec.md §4.1 mandates a *domain.ConflictError on any output key two
// branches both write, unless the caller registers a ports.MergeStrategy
// -- the teacher's last-write-wins default is not carried over.
type Parallel struct {
	id               string
	children         []ports.Operator
	mergeStrategy    ports.MergeStrategy
	concurrencyLimit int
}

var (
	_ ports.Operator           = (*Parallel)(nil)
	_ ports.StructuredOperator = (*Parallel)(nil)
	_ ports.Composite          = (*Parallel)(nil)
)

// NewParallel builds a Parallel from an unordered list of children.
// Sibling execution order is unspecified (spec.md §5); callers must not
// rely on it.
func NewParallel(id string, children ...ports.Operator) *Parallel {
	return &Parallel{id: id, children: children}
}

// WithMergeStrategy installs a resolver invoked when two branches write
// the same output key, replacing the default ConflictError behavior.
func (p *Parallel) WithMergeStrategy(strategy ports.MergeStrategy) *Parallel {
	p.mergeStrategy = strategy
	return p
}

// WithConcurrencyLimit bounds the number of children executing at once.
// Zero or negative means unbounded (len(children)).
func (p *Parallel) WithConcurrencyLimit(limit int) *Parallel {
	p.concurrencyLimit = limit
	return p
}

// ID returns the operator's stable identifier.
func (p *Parallel) ID() string { return p.id }

// Stochastic reports true if any child is stochastic.
func (p *Parallel) Stochastic() bool {
	for _, c := range p.children {
		if c.Stochastic() {
			return true
		}
	}
	return false
}

// Call runs every child concurrently on inputs. The first child error
// cancels the group's context, which best-effort cancels pending
// siblings (spec.md §4.1, §5); their results, if any arrive, are
// discarded. On success, branch outputs are merged via mergeStrategy, or
// via the default conflict-detecting merge if none was registered.
func (p *Parallel) Call(ctx context.Context, inputs domain.Record) (domain.Record, error) {
	if len(p.children) == 0 {
		return inputs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := p.concurrencyLimit
	if limit <= 0 {
		limit = len(p.children)
	}
	g.SetLimit(limit)

	outputs := make([]domain.Record, len(p.children))
	ids := make([]string, len(p.children))
	for i, child := range p.children {
		i, child := i, child
		ids[i] = child.ID()
		g.Go(func() error {
			out, err := child.Call(gctx, inputs)
			if err != nil {
				return domain.NewChildError(pathSegment(p.id, i, child.ID()), err)
			}
			outputs[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return inputs, err
	}

	if p.mergeStrategy != nil {
		return p.mergeStrategy.Merge(inputs, ids, outputs)
	}
	return defaultMerge(inputs, ids, outputs)
}

// defaultMerge implements spec.md §4.1's mandated behavior: any output
// key written by more than one branch raises a *domain.ConflictError.
// Keys unique to a single branch are merged in unconditionally. A key a
// branch returns with the same value it had in base is passed through,
// not written, and never counts toward a conflict.
func defaultMerge(base domain.Record, ids []string, branches []domain.Record) (domain.Record, error) {
	writers := make(map[string][]string)
	for i, branch := range branches {
		for _, k := range branch.Keys() {
			v, _ := branch.GetRaw(k)
			if baseV, ok := base.GetRaw(k); ok && reflect.DeepEqual(baseV, v) {
				continue
			}
			writers[k] = append(writers[k], ids[i])
		}
	}

	for key, who := range writers {
		if len(who) > 1 {
			return base, &domain.ConflictError{Key: key, Branches: who}
		}
	}

	result := base
	for _, branch := range branches {
		result = result.Merge(branch)
	}
	return result, nil
}

// Children implements ports.Composite.
func (p *Parallel) Children() []ports.Operator { return p.children }

// Structure implements ports.StructuredOperator.
func (p *Parallel) Structure() domain.Structure {
	children := make([]domain.Structure, len(p.children))
	stochastic := false
	for i, c := range p.children {
		children[i] = describe(c)
		stochastic = stochastic || children[i].HasStochasticDescendant()
	}
	return domain.Structure{
		Kind:       domain.KindParallel,
		ID:         p.id,
		Children:   children,
		Stochastic: stochastic,
	}
}
