package cpuspec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterminePerformanceCores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		brand string
		want  int
	}{
		{"12th Gen Intel(R) Core(TM) i7-12700K", 8},
		{"13th Gen Intel(R) Core(TM) i5-13600K", 6},
		{"Intel(R) Core(TM) i3-14100", 4},
		{"Intel(R) Core(TM) Ultra 7 265K", 8},
		{"Intel(R) Core(TM) Ultra 5 225", 4},
		{"Apple M1", 4},
		{"Apple M2 Pro", 8},
		{"Apple M3 Max", 12},
		{"Apple M4", 6},
		{"AMD Ryzen 9 5950X 16-Core Processor", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.brand, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, determinePerformanceCores(tt.brand))
		})
	}
}

func TestGetOptimalThreadCountCapsAtAvailableCPUs(t *testing.T) {
	t.Parallel()

	spec := CPUSpec{BrandName: "test", PerformanceCores: runtime.NumCPU() + 8}
	assert.Equal(t, runtime.NumCPU(), spec.GetOptimalThreadCount())
}

func TestGetOptimalThreadCountUsesPerformanceCores(t *testing.T) {
	t.Parallel()

	if runtime.NumCPU() < 2 {
		t.Skip("needs at least 2 CPUs")
	}

	spec := CPUSpec{BrandName: "test", PerformanceCores: 2}
	assert.Equal(t, 2, spec.GetOptimalThreadCount())
}

func TestGetCPUSpecPopulatesBrand(t *testing.T) {
	t.Parallel()

	spec := GetCPUSpec()
	// Brand may be empty in exotic VMs, but thread count must be positive
	assert.Positive(t, spec.GetOptimalThreadCount())
}
