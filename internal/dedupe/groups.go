package dedupe

import (
	"go.uber.org/zap"

	"github.com/attic-market/appraisal/internal/model"
)

// Group is a set of batch indices judged to represent the same physical
// item. The first index in input order is the canonical representative.
type Group struct {
	Indices []int `json:"indices"`
}

// Result is the unique/duplicate partition of a batch.
type Result struct {
	Unique     []model.Item `json:"unique"`
	Duplicates []model.Item `json:"duplicates"`
	Groups     []Group      `json:"groups"`
}

// FindGroups clusters near-duplicate items in the batch. Grouping is
// greedy and first-seen-wins: each unprocessed item scans forward and
// claims every still-unprocessed item it matches. The clustering is
// deliberately not transitive — once B is claimed by A, a later C that
// matches B but not A lands in its own group. Singletons produce no group.
func FindGroups(items []model.Item, threshold float64) []Group {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var groups []Group
	processed := make([]bool, len(items))

	for i := range items {
		if processed[i] {
			continue
		}
		group := Group{Indices: []int{i}}
		for j := i + 1; j < len(items); j++ {
			if processed[j] {
				continue
			}
			if isDuplicate(items[i], items[j], threshold) {
				group.Indices = append(group.Indices, j)
				processed[j] = true
			}
		}
		processed[i] = true
		if len(group.Indices) >= 2 {
			groups = append(groups, group)
		}
	}

	return groups
}

// RemoveDuplicates partitions the batch into unique and duplicate items,
// keeping the first item of each group as its representative and
// preserving original relative order in the unique output. Running it
// again on its own unique output yields no duplicates.
func RemoveDuplicates(items []model.Item, threshold float64) *Result {
	groups := FindGroups(items, threshold)

	duplicate := make(map[int]bool)
	for _, g := range groups {
		for _, idx := range g.Indices[1:] {
			duplicate[idx] = true
		}
	}

	result := &Result{Groups: groups}
	for i, item := range items {
		if duplicate[i] {
			result.Duplicates = append(result.Duplicates, item)
		} else {
			result.Unique = append(result.Unique, item)
		}
	}

	if len(result.Duplicates) > 0 {
		zap.L().Debug("dedupe: removed near-duplicates",
			zap.Int("input", len(items)),
			zap.Int("unique", len(result.Unique)),
			zap.Int("groups", len(groups)),
		)
	}

	return result
}
