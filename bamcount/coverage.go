// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package bamcount

import (
	"github.com/grailbio/hts/sam"
)

// consumesRef reports whether t advances the reference position.  Unlike
// CigarOpType.Consumes, it is defined for every 4-bit op code.
func consumesRef(t sam.CigarOpType) bool {
	switch t {
	case sam.CigarMatch, sam.CigarDeletion, sam.CigarSkipped, sam.CigarEqual, sam.CigarMismatch:
		return true
	}
	return false
}

// refEnd returns the exclusive end of rec's alignment on the reference.
func refEnd(rec *sam.Record) int {
	end := rec.Pos
	for _, co := range rec.Cigar {
		if consumesRef(co.Type()) {
			end += co.Len()
		}
	}
	return end
}

// addCoverage increments cov at every position rec's alignment covers, skipping
// positions up to and including the boundary recorded in mates for this read
// name.  If rec overlaps its properly paired mate, it records its own last
// position in mates.  mates may be nil, which disables the overlap correction.
// Positions at or beyond len(cov) are ignored.
//
// It returns the exclusive end of the alignment.
func addCoverage(rec *sam.Record, cov []uint32, mates *mateTable) int {
	properPair := rec.Flags&sam.ProperPair != 0
	mateEnd := -1
	if mates != nil && properPair {
		if e, ok := mates.lookup(rec.Name); ok {
			mateEnd = e
		}
	}
	end := rec.Pos
	for _, co := range rec.Cigar {
		if !consumesRef(co.Type()) {
			continue
		}
		n := co.Len()
		lo, hi := end, end+n
		if lo <= mateEnd {
			lo = mateEnd + 1
		}
		if hi > len(cov) {
			hi = len(cov)
		}
		for z := lo; z < hi; z++ {
			cov[z]++
		}
		end += n
	}
	// mosdepth-style overlap tracking: the first mate leaves its end behind
	// for the second.
	if mates != nil && properPair && rec.Ref.ID() == rec.MateRef.ID() &&
		end > rec.MatePos && rec.Pos < rec.MatePos {
		mates.set(rec.Name, end-1)
	}
	return end
}

// addReadEnds increments starts at rec's first aligned position and ends at
// its last one.  end is the exclusive alignment end as returned by refEnd.
func addReadEnds(rec *sam.Record, end int, starts, ends []uint32) {
	if end <= rec.Pos {
		// No reference-consuming ops; treat as a single base like htslib.
		end = rec.Pos + 1
	}
	if rec.Pos < len(starts) {
		starts[rec.Pos]++
	}
	if end-1 < len(ends) {
		ends[end-1]++
	}
}
