package multipart

import (
	"github.com/docker/go-units"
	"github.com/tanq16/rfidrop/internal/utils"
)

// PartRange is a contiguous [Start, End) slice of the source file
type PartRange struct {
	Number int
	Start  int64
	End    int64
}

func (r PartRange) Size() int64 {
	return r.End - r.Start
}

type Plan struct {
	FileSize  int64
	PartSize  int64
	PartCount int
	Ranges    []PartRange
}

// PartSizeFor picks a part size by tier so part counts stay bounded for large files.
func PartSizeFor(size int64) int64 {
	switch {
	case size > units.GiB:
		return 50 * units.MiB
	case size > 500*units.MiB:
		return 20 * units.MiB
	case size > 100*units.MiB:
		return 10 * units.MiB
	default:
		return utils.MinPartSize
	}
}

func PlanParts(size int64) Plan {
	return planWithPartSize(size, PartSizeFor(size))
}

// SinglePartPlan covers the whole file with one part, for presigned single-PUT uploads
func SinglePartPlan(size int64) Plan {
	return planWithPartSize(size, max(size, 1))
}

func planWithPartSize(size, partSize int64) Plan {
	plan := Plan{FileSize: size, PartSize: partSize}
	if size <= 0 {
		return plan
	}
	plan.PartCount = int((size + partSize - 1) / partSize)
	plan.Ranges = make([]PartRange, 0, plan.PartCount)
	for i := range plan.PartCount {
		start := int64(i) * partSize
		end := min(start+partSize, size)
		plan.Ranges = append(plan.Ranges, PartRange{Number: i + 1, Start: start, End: end})
	}
	return plan
}
