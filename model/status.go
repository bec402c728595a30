package model

import (
	"fmt"
	"sort"
	"strings"
)

// Status is the epidemic state of a single node.
type Status string

const (
	Susceptible Status = "S"
	Infected    Status = "I"
	Recovered   Status = "R"
)

// ModelKind selects which transition an infected node takes on recovery.
type ModelKind string

const (
	// SIR moves recovering nodes to Recovered, which is terminal.
	SIR ModelKind = "SIR"
	// SIS returns recovering nodes to Susceptible.
	SIS ModelKind = "SIS"
)

// ParseModelKind accepts "sir"/"sis" in any case.
func ParseModelKind(s string) (ModelKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(SIR):
		return SIR, nil
	case string(SIS):
		return SIS, nil
	default:
		return "", fmt.Errorf("unknown model kind %q (valid: SIR, SIS)", s)
	}
}

// StatusCounts maps each status currently held by at least one node to the
// number of nodes holding it. Statuses with no nodes are absent.
type StatusCounts map[Status]int

// Get returns the count for s, or zero when s is absent.
func (c StatusCounts) Get(s Status) int { return c[s] }

// Total returns the sum over all statuses.
func (c StatusCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// String renders counts in a stable S, I, R order.
func (c StatusCounts) String() string {
	keys := make([]string, 0, len(c))
	for s := range c {
		keys = append(keys, string(s))
	}
	sort.Slice(keys, func(i, j int) bool { return statusRank(Status(keys[i])) < statusRank(Status(keys[j])) })
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, c[Status(k)])
	}
	return strings.Join(parts, " ")
}

func statusRank(s Status) int {
	switch s {
	case Susceptible:
		return 0
	case Infected:
		return 1
	case Recovered:
		return 2
	default:
		return 3
	}
}
