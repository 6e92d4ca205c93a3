package cron

import (
	"context"
	"fmt"
)

// Job is one unit of scheduled reconcile work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry is the ordered job list for a cycle. Names are unique so that
// logs and metrics can tell jobs apart.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends job. Nil jobs are ignored.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job has no name")
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

func (r *Registry) Names() []string {
	out := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		out[i] = job.Name()
	}
	return out
}
