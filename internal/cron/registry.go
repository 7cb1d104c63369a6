package cron

import (
	"context"
	"fmt"
	"sort"
)

// Job is one maintenance task run on every cron cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order; names are unique.
type Registry struct {
	order  []string
	byName map[string]Job
}

// NewRegistry registers jobs in order, skipping nils. It fails on duplicate names.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.byName[name] = job
	r.order = append(r.order, name)
	return nil
}

// Jobs returns a copy in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		jobs = append(jobs, r.byName[name])
	}
	return jobs
}

// Only narrows the registry to the named jobs, keeping registration order.
func (r *Registry) Only(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	want := map[string]bool{}
	for _, name := range names {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q (have %v)", name, r.names())
		}
		want[name] = true
	}
	subset := &Registry{byName: map[string]Job{}}
	for _, name := range r.order {
		if want[name] {
			_ = subset.Register(r.byName[name])
		}
	}
	return subset, nil
}

func (r *Registry) names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
