// Package validate checks that a batch's sessions were actually served
// by the expected number of distinct backend instances. Behind a load
// balancer a single responding host means the load was not distributed
// and the measurement says nothing about the cluster.
package validate

import (
	"envbench/internal/session"
)

// Check is a distinct-host expectation.
type Check struct {
	MinHosts int
	Fatal    bool
}

// Report is the outcome of evaluating a Check.
type Report struct {
	Expected int
	Distinct int
	Pass     bool
}

// DistinctHosts counts distinct host identifiers among successful
// sessions. Failed sessions carry no trustworthy host info.
func DistinctHosts(results []session.Result) int {
	hosts := map[string]struct{}{}
	for _, r := range results {
		if r.Success && r.HostURL != "" {
			hosts[r.HostURL] = struct{}{}
		}
	}
	return len(hosts)
}

func (c Check) Enabled() bool {
	return c.MinHosts > 0
}

func (c Check) Evaluate(results []session.Result) Report {
	distinct := DistinctHosts(results)
	return Report{
		Expected: c.MinHosts,
		Distinct: distinct,
		Pass:     distinct >= c.MinHosts,
	}
}
