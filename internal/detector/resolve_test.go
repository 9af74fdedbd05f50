package detector

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveClassFilter(t *testing.T) {
	t.Parallel()

	labels := []string{"person", "banana", "apple", "orange"}

	tests := []struct {
		name           string
		classes        []string
		wantRestricted bool
		wantIDs        []int
	}{
		{
			name:           "all classes match",
			classes:        []string{"apple", "banana", "orange"},
			wantRestricted: true,
			wantIDs:        []int{1, 2, 3},
		},
		{
			name:           "matching is case insensitive",
			classes:        []string{"Apple", "BANANA"},
			wantRestricted: true,
			wantIDs:        []int{1, 2},
		},
		{
			name:           "no match falls back to unrestricted",
			classes:        []string{"pineapple", "mango"},
			wantRestricted: false,
		},
		{
			name:           "partial match restricts to the matches",
			classes:        []string{"apple", "pineapple"},
			wantRestricted: true,
			wantIDs:        []int{2},
		},
		{
			name:           "blank entries are ignored",
			classes:        []string{"  ", "apple", ""},
			wantRestricted: true,
			wantIDs:        []int{2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cf := resolveClassFilter(labels, tt.classes)
			assert.Equal(t, tt.wantRestricted, cf.restricted)

			if tt.wantRestricted {
				require.Len(t, cf.ids, len(tt.wantIDs))
				for _, id := range tt.wantIDs {
					assert.Contains(t, cf.ids, id)
				}
			} else {
				assert.Empty(t, cf.ids)
			}
		})
	}
}

func TestResolveClassFilterAgainstEmbeddedTable(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, []string{"apple", "banana", "orange"})
	require.NoError(t, d.loadLabels())

	cf := resolveClassFilter(d.labels, d.Settings.Detector.Classes)
	require.True(t, cf.restricted)
	assert.Contains(t, cf.ids, 46, "banana")
	assert.Contains(t, cf.ids, 47, "apple")
	assert.Contains(t, cf.ids, 49, "orange")
	assert.Len(t, cf.ids, 3)
}

func TestClassFilterCachedResolvesOnce(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, []string{"apple", "banana"})
	require.NoError(t, d.loadLabels())

	const goroutines = 32
	results := make([]*classFilter, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := range goroutines {
		go func() {
			defer wg.Done()
			results[i] = d.classFilterCached()
		}()
	}
	wg.Wait()

	first := results[0]
	require.NotNil(t, first)
	for i := 1; i < goroutines; i++ {
		assert.Same(t, first, results[i], "all callers must share one resolved filter")
	}
}

func TestPostFilterUnrestricted(t *testing.T) {
	t.Parallel()

	cf := resolveClassFilter([]string{"car", "truck"}, []string{"apple"})
	require.False(t, cf.restricted)

	dets := []Detection{
		{Class: "car", Confidence: 0.9},
		{Class: "apple", Confidence: 0.8},
		{Class: "truck", Confidence: 0.7},
	}
	kept := cf.postFilter(dets)
	require.Len(t, kept, 1)
	assert.Equal(t, "apple", kept[0].Class)
}

func TestResolveClasses(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t, []string{"Orange", "apple", "pineapple", "apple"})
	require.NoError(t, d.loadLabels())

	infos := d.ResolveClasses()
	require.Len(t, infos, 3, "duplicates collapse")

	assert.Equal(t, "apple", infos[0].Name)
	assert.Equal(t, 47, infos[0].LabelIndex)
	assert.True(t, infos[0].Matched)

	assert.Equal(t, "orange", infos[1].Name)
	assert.Equal(t, 49, infos[1].LabelIndex)
	assert.True(t, infos[1].Matched)

	assert.Equal(t, "pineapple", infos[2].Name)
	assert.Equal(t, -1, infos[2].LabelIndex)
	assert.False(t, infos[2].Matched)
}
