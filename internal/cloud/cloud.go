// Package cloud buckets tags into visual weight classes for a tag cloud.
package cloud

import (
	"sort"

	"github.com/pbaille/folksonomy/internal/domain"
)

// Size is the visual weight class of a tag.
type Size int

const (
	Smallest Size = iota
	Small
	Medium
	Big
	Biggest
	Huge
	Hugest
	MostHuge
)

var sizeNames = [...]string{"smallest", "small", "medium", "big", "biggest", "huge", "hugest", "mostHuge"}

func (s Size) String() string {
	if s < Smallest || s > MostHuge {
		return "unknown"
	}
	return sizeNames[s]
}

// Class is the CSS class used by the rendered cloud, e.g. "mostHugeTag".
func (s Size) Class() string {
	return s.String() + "Tag"
}

// Entry is one tag of a cloud.
type Entry struct {
	Tag   domain.Tag `json:"tag"`
	Count int        `json:"count"`
	Size  Size       `json:"size"`
}

// Cloud lists tags in position order.
type Cloud []Entry

// Build assigns each tag of counts its size class relative to minCount and
// maxCount. It returns nil for an empty counts map.
func Build(counts map[domain.Tag]int, minCount, maxCount int) Cloud {
	if len(counts) == 0 {
		return nil
	}

	distribution := (maxCount - minCount) / 6

	tags := make([]domain.Tag, 0, len(counts))
	for t := range counts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Less(tags[j]) })

	cloud := make(Cloud, 0, len(tags))
	for _, t := range tags {
		count := counts[t]
		size := Medium
		if t.Rankable() {
			size = classify(count, minCount, maxCount, distribution)
		}
		cloud = append(cloud, Entry{Tag: t, Count: count, Size: size})
	}
	return cloud
}

// classify checks the thresholds from the top down; the first match wins.
func classify(count, lo, hi, distribution int) Size {
	switch {
	case count == hi:
		return MostHuge
	case count > lo+distribution*5:
		return Hugest
	case count > lo+distribution*4:
		return Huge
	case count > lo+distribution*3:
		return Biggest
	case count > lo+distribution*2:
		return Big
	case count > lo+distribution:
		return Medium
	case count > lo:
		return Small
	case count == lo:
		return Smallest
	}
	return Medium
}

// Popular rebuilds a cloud from the tags ranked above the two bottom tiers,
// rebalanced against the smallest surviving count. It returns nil when no
// tag survives.
func Popular(counts map[domain.Tag]int, minCount, maxCount int) Cloud {
	distribution := (maxCount - minCount) / 6

	popular := make(map[domain.Tag]int)
	popMin := maxCount
	for t, count := range counts {
		if count > minCount+distribution {
			popular[t] = count
			popMin = min(popMin, count)
		}
	}
	return Build(popular, popMin, maxCount)
}
