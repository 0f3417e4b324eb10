package alloc

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"
)

// WriteProfile emits a pprof profile describing the allocator's current
// regions and blocks: one sample per block, valued by its size, labeled
// live or free and tagged with the owning region. This is not a CPU
// profile - it borrows the pprof container the way a heap profile does,
// to get a format every pprof-speaking tool already knows how to browse,
// rather than inventing a bespoke diagnostics dump.
func (a *Allocator) WriteProfile(w io.Writer) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "bytes", Unit: "bytes"},
		},
		DefaultSampleType: "bytes",
		PeriodType:        &profile.ValueType{Type: "space", Unit: "bytes"},
		Period:            1,
	}

	liveFn := &profile.Function{ID: 1, Name: "live"}
	freeFn := &profile.Function{ID: 2, Name: "free"}
	p.Function = []*profile.Function{liveFn, freeFn}

	var nextLoc uint64 = 1
	var nextMap uint64 = 1

	for _, r := range a.regions {
		m := &profile.Mapping{
			ID:    nextMap,
			Start: uint64(r.base),
			Limit: uint64(r.base + r.size),
		}
		nextMap++
		p.Mapping = append(p.Mapping, m)

		for e := r.blocks.Front(); e != nil; e = e.Next() {
			b := e.Value.(*Block)

			fn := freeFn
			label := "free"
			if !b.free {
				fn = liveFn
				label = "live"
			}

			loc := &profile.Location{
				ID:      nextLoc,
				Mapping: m,
				Address: uint64(b.base),
				Line:    []profile.Line{{Function: fn}},
			}
			nextLoc++
			p.Location = append(p.Location, loc)

			p.Sample = append(p.Sample, &profile.Sample{
				Location: []*profile.Location{loc},
				Value:    []int64{int64(b.size)},
				Label: map[string][]string{
					"state":  {label},
					"region": {fmt.Sprintf("%#x", r.base)},
				},
			})
		}
	}

	if err := p.CheckValid(); err != nil {
		return err
	}
	return p.Write(w)
}
