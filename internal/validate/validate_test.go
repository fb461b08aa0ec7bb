package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"envbench/internal/session"
	"envbench/internal/validate"
)

func results(hosts ...string) []session.Result {
	out := make([]session.Result, len(hosts))
	for i, h := range hosts {
		out[i] = session.Result{Success: true, HostURL: h}
	}
	return out
}

func TestDistinctHosts(t *testing.T) {
	assert.Equal(t, 0, validate.DistinctHosts(nil))
	assert.Equal(t, 1, validate.DistinctHosts(results("a", "a", "a")))
	assert.Equal(t, 2, validate.DistinctHosts(results("a", "b", "a", "b")))
}

func TestDistinctHostsIgnoresFailures(t *testing.T) {
	rs := results("a")
	rs = append(rs, session.Result{Success: false, HostURL: "ghost"})
	rs = append(rs, session.Result{Success: true, HostURL: ""})
	assert.Equal(t, 1, validate.DistinctHosts(rs))
}

func TestCheckSingleHostFailsTwoHostExpectation(t *testing.T) {
	check := validate.Check{MinHosts: 2}
	report := check.Evaluate(results("a", "a", "a", "a"))

	assert.False(t, report.Pass)
	assert.Equal(t, 1, report.Distinct)
	assert.Equal(t, 2, report.Expected)
}

func TestCheckRoundRobinPasses(t *testing.T) {
	check := validate.Check{MinHosts: 2}
	report := check.Evaluate(results("a", "b", "a", "b"))

	assert.True(t, report.Pass)
	assert.Equal(t, 2, report.Distinct)
}

func TestCheckDisabled(t *testing.T) {
	assert.False(t, validate.Check{}.Enabled())
	assert.True(t, validate.Check{MinHosts: 1}.Enabled())
}
