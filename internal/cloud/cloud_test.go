package cloud

import (
	"testing"

	"github.com/pbaille/folksonomy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tag(name string) domain.Tag { return domain.NewTag(name) }

// counts {1,1,2,5,9,9}: min=1, max=9, distribution=1
func partitionCounts() map[domain.Tag]int {
	return map[domain.Tag]int{
		tag("a"): 1,
		tag("b"): 1,
		tag("c"): 2,
		tag("d"): 5,
		tag("e"): 9,
		tag("f"): 9,
	}
}

func sizes(c Cloud) map[string]Size {
	out := make(map[string]Size, len(c))
	for _, e := range c {
		out[e.Tag.Name] = e.Size
	}
	return out
}

func TestBuild_ThresholdPartition(t *testing.T) {
	c := Build(partitionCounts(), 1, 9)
	require.Len(t, c, 6)

	assert.Equal(t, map[string]Size{
		"a": Smallest,
		"b": Smallest,
		"c": Small,
		"d": Biggest,
		"e": MostHuge,
		"f": MostHuge,
	}, sizes(c))
}

func TestBuild_OrderedByTag(t *testing.T) {
	c := Build(partitionCounts(), 1, 9)
	for i := 1; i < len(c); i++ {
		assert.True(t, c[i-1].Tag.Less(c[i].Tag))
	}
}

func TestClassify_AllTiers(t *testing.T) {
	// min=0, max=60, distribution=10
	tests := []struct {
		count int
		want  Size
	}{
		{60, MostHuge},
		{51, Hugest},
		{50, Huge},
		{41, Huge},
		{31, Biggest},
		{21, Big},
		{11, Medium},
		{10, Small},
		{1, Small},
		{0, Smallest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.count, 0, 60, 10), "count %d", tt.count)
	}
}

func TestBuild_ZeroDistribution(t *testing.T) {
	// max-min < 6 collapses the thresholds onto min.
	c := Build(map[domain.Tag]int{tag("a"): 3, tag("b"): 4, tag("c"): 5}, 3, 5)
	assert.Equal(t, map[string]Size{"a": Smallest, "b": Hugest, "c": MostHuge}, sizes(c))
}

func TestBuild_UntaggedIsMedium(t *testing.T) {
	c := Build(map[domain.Tag]int{domain.Untagged: 9, tag("x"): 1}, 1, 9)
	for _, e := range c {
		if e.Tag == domain.Untagged {
			assert.Equal(t, Medium, e.Size)
			assert.Equal(t, 9, e.Count)
		}
	}
}

func TestBuild_LargestUntaggedBucketDoesNotSetScale(t *testing.T) {
	// min over every bucket, max over real tags only
	counts := map[domain.Tag]int{domain.Untagged: 5, tag("foo"): 2, tag("bar"): 1}
	c := Build(counts, 1, 2)
	assert.Equal(t, map[string]Size{"untagged": Medium, "foo": MostHuge, "bar": Smallest}, sizes(c))
}

func TestBuild_Empty(t *testing.T) {
	assert.Nil(t, Build(nil, 0, 0))
	assert.Nil(t, Popular(nil, 0, 0))
}

func TestPopular(t *testing.T) {
	counts := partitionCounts()
	full := Build(counts, 1, 9)
	pop := Popular(counts, 1, 9)

	// count > min + distribution = 2 keeps d, e, f; new min is 5
	require.Len(t, pop, 3)
	assert.Equal(t, map[string]Size{"d": Smallest, "e": MostHuge, "f": MostHuge}, sizes(pop))

	fullTags := sizes(full)
	popMin := pop[0].Count
	for _, e := range pop {
		assert.Contains(t, fullTags, e.Tag.Name)
		popMin = min(popMin, e.Count)
	}
	assert.Greater(t, popMin, 1)
}

func TestPopular_NoSurvivors(t *testing.T) {
	counts := map[domain.Tag]int{tag("a"): 2, tag("b"): 2}
	assert.Nil(t, Popular(counts, 2, 2))
}

func TestSizeNames(t *testing.T) {
	assert.Equal(t, "mostHuge", MostHuge.String())
	assert.Equal(t, "smallestTag", Smallest.Class())
	assert.Equal(t, "unknown", Size(42).String())
}
