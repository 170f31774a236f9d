package compare

import (
	"strings"

	"github.com/autoscholar/backend/internal/storage/models"
)

type pointOwners struct {
	display string
	owners  map[string]struct{}
}

// ComputeDiffs extracts comparison points from each selected paper and
// partitions them into points common to every paper and points unique to a
// single paper. The text source per paper is the backend summary matched by
// id, falling back to the paper's own abstract, then its summary field.
//
// Points are keyed case-insensitively: two papers producing the same
// lower-cased fragment count as one point. A point owned by some but not all
// papers is dropped. The unique map always carries one entry per selected
// paper, empty or not. Never fails: absent inputs produce empty output.
func ComputeDiffs(result *Result, papers []models.Paper) Diffs {
	diffs := Diffs{Common: []string{}, Unique: map[string][]string{}}
	if result == nil || len(result.Papers) == 0 {
		return diffs
	}

	summaries := make(map[string]string, len(result.Papers))
	for _, ps := range result.Papers {
		summaries[string(ps.PaperID)] = ps.Summary
	}

	entries := make(map[string]*pointOwners)
	var order []string

	for _, p := range papers {
		id := string(p.ID)
		text := summaries[id]
		if text == "" {
			text = p.Abstract
		}
		if text == "" {
			text = p.Summary
		}

		for _, pt := range ExtractPoints(text) {
			key := strings.ToLower(pt)
			entry, ok := entries[key]
			if !ok {
				entry = &pointOwners{display: pt, owners: map[string]struct{}{}}
				entries[key] = entry
				order = append(order, key)
			}
			entry.owners[id] = struct{}{}
		}
	}

	for _, p := range papers {
		diffs.Unique[string(p.ID)] = []string{}
	}

	total := len(papers)
	for _, key := range order {
		entry := entries[key]
		switch {
		case len(entry.owners) == total:
			diffs.Common = append(diffs.Common, entry.display)
		case len(entry.owners) == 1:
			for id := range entry.owners {
				diffs.Unique[id] = append(diffs.Unique[id], entry.display)
			}
		}
	}

	return diffs
}
