// Package allocator splits a results budget across several requested topics.
package allocator

import "strings"

// Ceiling is the most units the surplus pass gives a single topic.
const Ceiling = 5

const fairShare = 2

// Allocation holds per-topic units in the order topics were requested.
type Allocation struct {
	Topics []string       `json:"topics"`
	Units  map[string]int `json:"units"`
}

// Total sums all granted units.
func (a Allocation) Total() int {
	total := 0
	for _, n := range a.Units {
		total += n
	}
	return total
}

// Allocate distributes totalLimit units across topics in three passes:
// one unit each, then a second unit each, then one unit at a time round-robin
// among topics still below Ceiling. Every pass walks topics in input order and
// stops when the budget runs out. Blank and repeated topic names are ignored.
func Allocate(topics []string, totalLimit int) Allocation {
	ordered := uniqueTopics(topics)
	units := make(map[string]int, len(ordered))
	for _, t := range ordered {
		units[t] = 0
	}

	remaining := totalLimit
	if remaining < 0 {
		remaining = 0
	}

	// floor
	for _, t := range ordered {
		if remaining == 0 {
			break
		}
		units[t]++
		remaining--
	}

	// fairness
	for _, t := range ordered {
		if remaining == 0 {
			break
		}
		if units[t] < fairShare {
			units[t]++
			remaining--
		}
	}

	// surplus
	for remaining > 0 {
		granted := false
		for _, t := range ordered {
			if remaining == 0 {
				break
			}
			if units[t] < Ceiling {
				units[t]++
				remaining--
				granted = true
			}
		}
		if !granted {
			break
		}
	}

	return Allocation{Topics: ordered, Units: units}
}

func uniqueTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
