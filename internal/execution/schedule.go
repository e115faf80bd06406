package execution

import (
	"math/rand"

	"github.com/yungbote/workload-harness/internal/config"
	"github.com/yungbote/workload-harness/internal/errdefs"
)

// ScheduleFunc turns the ordered spec list into the flat job queue. Pure:
// no device or context access, and the queue is fully materialized before
// the run starts.
type ScheduleFunc func(specs []*Spec) []*Job

func specJobGroups(specs []*Spec) [][]*Job {
	groups := make([][]*Job, 0, len(specs))
	for _, s := range specs {
		group := make([]*Job, 0, s.Iterations)
		for i := 0; i < s.Iterations; i++ {
			group = append(group, NewJob(s))
		}
		groups = append(groups, group)
	}
	return groups
}

// roundRobin interleaves groups by index, dropping exhausted groups
// (zip-longest with empties removed).
func roundRobin(groups [][]*Job) []*Job {
	var out []*Job
	for round := 0; ; round++ {
		hit := false
		for _, g := range groups {
			if round < len(g) {
				out = append(out, g[round])
				hit = true
			}
		}
		if !hit {
			return out
		}
	}
}

// ScheduleBySpec is the classic ordering: all iterations of spec 1, then
// all of spec 2, and so on.
func ScheduleBySpec(specs []*Spec) []*Job {
	var out []*Job
	for _, g := range specJobGroups(specs) {
		out = append(out, g...)
	}
	return out
}

// ScheduleByIteration runs the first iteration of every spec, then the
// second, etc. Specs with fewer iterations simply drop out of later rounds.
func ScheduleByIteration(specs []*Spec) []*Job {
	return roundRobin(specJobGroups(specs))
}

// ScheduleBySection groups specs by section (first-seen order), round-robins
// specs across sections, then applies the by-iteration interleave to the
// resulting spec order.
func ScheduleBySection(specs []*Spec) []*Job {
	var sectionOrder []string
	sections := map[string][]*Spec{}
	for _, s := range specs {
		if _, seen := sections[s.SectionID]; !seen {
			sectionOrder = append(sectionOrder, s.SectionID)
		}
		sections[s.SectionID] = append(sections[s.SectionID], s)
	}
	var interleaved []*Spec
	for round := 0; ; round++ {
		hit := false
		for _, id := range sectionOrder {
			if round < len(sections[id]) {
				interleaved = append(interleaved, sections[id][round])
				hit = true
			}
		}
		if !hit {
			break
		}
	}
	return ScheduleByIteration(interleaved)
}

// ScheduleRandom shuffles the by-spec order with a seeded PRNG so a run can
// be reproduced from its logged seed.
func ScheduleRandom(seed int64) ScheduleFunc {
	return func(specs []*Spec) []*Job {
		jobs := ScheduleBySpec(specs)
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(jobs), func(i, j int) {
			jobs[i], jobs[j] = jobs[j], jobs[i]
		})
		return jobs
	}
}

// ScheduleForOrder maps a configured execution order to its scheduler.
func ScheduleForOrder(order config.ExecutionOrder, seed int64) (ScheduleFunc, error) {
	switch order {
	case "", config.OrderByIteration:
		return ScheduleByIteration, nil
	case config.OrderBySpec, config.OrderClassic:
		return ScheduleBySpec, nil
	case config.OrderBySection:
		return ScheduleBySection, nil
	case config.OrderRandom:
		return ScheduleRandom(seed), nil
	default:
		return nil, errdefs.Newf(errdefs.KindConfig, "unexpected execution order: %s", order)
	}
}
