package multipart

import (
	"testing"

	"github.com/docker/go-units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartSizeFor(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want int64
	}{
		{"tiny", 1, 5 * units.MiB},
		{"100MiB boundary", 100 * units.MiB, 5 * units.MiB},
		{"just over 100MiB", 100*units.MiB + 1, 10 * units.MiB},
		{"500MiB boundary", 500 * units.MiB, 10 * units.MiB},
		{"just over 500MiB", 500*units.MiB + 1, 20 * units.MiB},
		{"1GiB boundary", units.GiB, 20 * units.MiB},
		{"just over 1GiB", units.GiB + 1, 50 * units.MiB},
		{"10GiB", 10 * units.GiB, 50 * units.MiB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PartSizeFor(tt.size))
		})
	}
}

func TestPlanPartsCoversFile(t *testing.T) {
	sizes := []int64{1, 5 * units.MiB, 5*units.MiB + 1, 12 * units.MiB, 333*units.MiB + 17, 2 * units.GiB}
	for _, size := range sizes {
		plan := PlanParts(size)
		require.Len(t, plan.Ranges, plan.PartCount)
		var next int64
		for i, r := range plan.Ranges {
			assert.Equal(t, i+1, r.Number)
			assert.Equal(t, next, r.Start)
			assert.Greater(t, r.End, r.Start)
			if i < len(plan.Ranges)-1 {
				assert.GreaterOrEqual(t, r.Size(), int64(5*units.MiB))
				assert.Equal(t, plan.PartSize, r.Size())
			}
			next = r.End
		}
		assert.Equal(t, size, next, "ranges must end at the file size")
	}
}

func TestPlanPartsScenarios(t *testing.T) {
	plan := PlanParts(12 * units.MiB)
	assert.Equal(t, 3, plan.PartCount)
	assert.Equal(t, int64(2*units.MiB), plan.Ranges[2].Size())

	plan = PlanParts(2 * units.GiB)
	assert.Equal(t, int64(50*units.MiB), plan.PartSize)
	assert.Equal(t, 41, plan.PartCount)
}

func TestPlanPartsEmpty(t *testing.T) {
	plan := PlanParts(0)
	assert.Zero(t, plan.PartCount)
	assert.Empty(t, plan.Ranges)
}

func TestSinglePartPlan(t *testing.T) {
	plan := SinglePartPlan(700 * units.MiB)
	require.Equal(t, 1, plan.PartCount)
	assert.Equal(t, PartRange{Number: 1, Start: 0, End: 700 * units.MiB}, plan.Ranges[0])
}
