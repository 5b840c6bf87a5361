package resources

import (
	"errors"
	"fmt"
	"slices"

	apperrors "github.com/jrsteele09/go-agency-admin/internal/errors"
	"github.com/jrsteele09/go-agency-admin/querycache"
)

// Mutation is a kind of write.
type Mutation int

const (
	Create Mutation = iota
	Update
	Delete
)

var mutations = []Mutation{Create, Update, Delete}

func (m Mutation) String() string {
	switch m {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("mutation(%d)", int(m))
}

type targetKind int

const (
	listOf targetKind = iota
	recordDetail
	allDetailsOf
)

// Target is a set of cached reads a mutation makes stale.
type Target struct {
	kind     targetKind
	resource string
}

// List targets every list of resource, filtered or not.
func List(resource Resource) Target { return Target{kind: listOf, resource: resource.Name} }

// Detail targets the detail read of the mutated record.
func Detail() Target { return Target{kind: recordDetail} }

// Details targets every detail read of resource.
func Details(resource Resource) Target { return Target{kind: allDetailsOf, resource: resource.Name} }

func (t Target) String() string {
	switch t.kind {
	case listOf:
		return "list(" + t.resource + ")"
	case recordDetail:
		return "detail(self)"
	default:
		return "details(" + t.resource + ")"
	}
}

type ruleKey struct {
	resource string
	mutation Mutation
}

// Registry maps each (resource, mutation) to the reads it invalidates.
type Registry struct {
	resources map[string]Resource
	rules     map[ruleKey][]Target
}

func NewRegistry(resources ...Resource) *Registry {
	r := &Registry{
		resources: make(map[string]Resource, len(resources)),
		rules:     make(map[ruleKey][]Target),
	}
	for _, res := range resources {
		r.resources[res.Name] = res
	}
	return r
}

// On declares the targets invalidated when resource undergoes any of
// mutations. Repeated declarations add to each other.
func (r *Registry) On(resource Resource, mutations []Mutation, targets ...Target) *Registry {
	for _, m := range mutations {
		k := ruleKey{resource: resource.Name, mutation: m}
		r.rules[k] = append(r.rules[k], targets...)
	}
	return r
}

// Validate checks that every writable resource declares each mutation, that
// every mutation invalidates its own list, that updates and deletes also
// invalidate the record's detail, and that targets name known resources.
func (r *Registry) Validate() error {
	var problems []error

	for _, res := range r.resources {
		for _, m := range mutations {
			targets, declared := r.rules[ruleKey{resource: res.Name, mutation: m}]
			if res.ReadOnly {
				if declared {
					problems = append(problems, fmt.Errorf("%s %s: %w", res.Name, m, apperrors.ErrReadOnlyResource))
				}
				continue
			}
			if !declared {
				problems = append(problems, fmt.Errorf("%s %s: %w", res.Name, m, apperrors.ErrMissingInvalidation))
				continue
			}
			if !slices.Contains(targets, List(res)) {
				problems = append(problems, fmt.Errorf("%s %s does not invalidate its own list: %w", res.Name, m, apperrors.ErrMissingInvalidation))
			}
			if m != Create && !slices.Contains(targets, Detail()) && !slices.Contains(targets, Details(res)) {
				problems = append(problems, fmt.Errorf("%s %s does not invalidate the record detail: %w", res.Name, m, apperrors.ErrMissingInvalidation))
			}
		}
	}

	for k, targets := range r.rules {
		if _, ok := r.resources[k.resource]; !ok {
			problems = append(problems, fmt.Errorf("rule for %s: %w", k.resource, apperrors.ErrUnknownResource))
		}
		for _, t := range targets {
			if t.kind == recordDetail {
				continue
			}
			if _, ok := r.resources[t.resource]; !ok {
				problems = append(problems, fmt.Errorf("%s %s targets %s: %w", k.resource, k.mutation, t, apperrors.ErrUnknownResource))
			}
		}
	}

	if len(problems) > 0 {
		slices.SortFunc(problems, func(a, b error) int {
			switch {
			case a.Error() < b.Error():
				return -1
			case a.Error() > b.Error():
				return 1
			}
			return 0
		})
		return fmt.Errorf("[Registry Validate] %w", errors.Join(problems...))
	}
	return nil
}

// Keys returns the cache keys a mutation of resource invalidates. id is
// the mutated record; it may be empty for a create.
func (r *Registry) Keys(resource Resource, m Mutation, id string) ([]querycache.Key, error) {
	targets, ok := r.rules[ruleKey{resource: resource.Name, mutation: m}]
	if !ok {
		return nil, fmt.Errorf("[Registry Keys] %s %s: %w", resource.Name, m, apperrors.ErrMissingInvalidation)
	}

	keys := make([]querycache.Key, 0, len(targets))
	for _, t := range targets {
		switch t.kind {
		case listOf:
			keys = append(keys, querycache.NewKey(t.resource))
		case recordDetail:
			if id != "" {
				keys = append(keys, resource.DetailKey(id))
			}
		case allDetailsOf:
			keys = append(keys, querycache.NewKey(r.resources[t.resource].Singular))
		}
	}
	return keys, nil
}

// DefaultRegistry is the agency's invalidation map.
func DefaultRegistry() *Registry {
	all := []Mutation{Create, Update, Delete}
	changes := []Mutation{Update, Delete}

	r := NewRegistry(All()...)
	for _, res := range Writable() {
		r.On(res, all, List(res))
		r.On(res, changes, Detail())
	}

	// Reports aggregate bookings, payments and expenses.
	r.On(Bookings, all, List(Reports))
	r.On(Payments, all, List(Bookings), Details(Bookings), List(Reports))
	r.On(Expenses, all, List(Reports))

	// Lists show the names of related records.
	r.On(Suppliers, changes, List(Expenses))
	r.On(Vehicles, changes, List(Bookings))
	r.On(Customers, changes, List(Bookings))
	r.On(Packages, changes, List(Bookings))
	return r
}
