package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RebootPolicy dictates when the device is (re)booted during a run.
type RebootPolicy struct {
	policy string
}

const (
	RebootNever         = "never"
	RebootAsNeeded      = "as_needed"
	RebootInitial       = "initial"
	RebootEachSpec      = "each_spec"
	RebootEachIteration = "each_iteration"
)

var rebootPolicies = []string{
	RebootNever,
	RebootAsNeeded,
	RebootInitial,
	RebootEachSpec,
	RebootEachIteration,
}

func NewRebootPolicy(policy string) (RebootPolicy, error) {
	p := strings.TrimSpace(strings.ToLower(policy))
	for _, known := range rebootPolicies {
		if p == known {
			return RebootPolicy{policy: p}, nil
		}
	}
	return RebootPolicy{}, fmt.Errorf("invalid reboot policy %q (expected one of %s)",
		policy, strings.Join(rebootPolicies, ", "))
}

func (p RebootPolicy) String() string {
	if p.policy == "" {
		return RebootAsNeeded
	}
	return p.policy
}

// CanReboot reports whether any reboot is permitted at all.
func (p RebootPolicy) CanReboot() bool {
	return p.String() != RebootNever
}

// PerformInitialBoot reports whether the run starts with a reboot.
func (p RebootPolicy) PerformInitialBoot() bool {
	switch p.String() {
	case RebootInitial, RebootEachSpec, RebootEachIteration:
		return true
	}
	return false
}

func (p RebootPolicy) RebootOnEachSpec() bool {
	return p.String() == RebootEachSpec
}

func (p RebootPolicy) RebootOnEachIteration() bool {
	return p.String() == RebootEachIteration
}

func (p RebootPolicy) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

func (p *RebootPolicy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := NewRebootPolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
