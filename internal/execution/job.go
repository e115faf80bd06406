package execution

import "github.com/yungbote/workload-harness/internal/result"

// Job is one scheduled attempt at executing one iteration of one spec. The
// scheduler creates jobs with Retry 0; a retry clone carries the same spec
// reference and Retry+1.
type Job struct {
	Spec      *Spec
	Retry     int
	Iteration int
	Result    *result.IterationResult
}

func NewJob(spec *Spec) *Job {
	r := result.NewIterationResult(spec.ID, spec.Label, spec.Workload.Name())
	return &Job{Spec: spec, Result: r}
}

func newRetryJob(prev *Job) *Job {
	j := NewJob(prev.Spec)
	j.Retry = prev.Retry + 1
	j.Result.Retry = j.Retry
	return j
}

// jobQueue is the pre-materialized, ordered run plan. The runner only ever
// pops the head; the single mutation after scheduling is pushFront for a
// retry, which must run immediately next.
type jobQueue struct {
	jobs []*Job
}

func (q *jobQueue) empty() bool { return len(q.jobs) == 0 }

func (q *jobQueue) head() *Job {
	if len(q.jobs) == 0 {
		return nil
	}
	return q.jobs[0]
}

func (q *jobQueue) second() *Job {
	if len(q.jobs) < 2 {
		return nil
	}
	return q.jobs[1]
}

func (q *jobQueue) popFront() *Job {
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j
}

func (q *jobQueue) pushFront(j *Job) {
	q.jobs = append([]*Job{j}, q.jobs...)
}
