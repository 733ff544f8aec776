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

// Package mdz parses the MD:Z auxiliary field of a SAM/BAM record into a
// sequence of match, mismatch and deletion runs.
//
// The MD:Z string describes the reference bases covered by the
// reference-consuming CIGAR operations of a read: digit runs are stretches of
// bases agreeing with the reference, letter runs are reference bases at
// mismatching positions, and '^' followed by letters lists deleted reference
// bases. For example, "10A5^AC6" is 10 matches, one mismatch against a
// reference A, 5 matches, a 2-base deletion of AC, and 6 matches.
package mdz

import (
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
)

// DefaultMaxBases is the default upper bound on the number of reference bases
// stored by a single Mismatch or Deletion op.  It bounds individual MD:Z
// letter runs, not read length.
const DefaultMaxBases = 1024

// Kind is the type of an Op.
type Kind byte

const (
	// Match is a run of bases agreeing with the reference.
	Match Kind = '='
	// Mismatch is a run of bases differing from the reference.
	Mismatch Kind = 'X'
	// Deletion is a run of reference bases absent from the read.
	Deletion Kind = '^'
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	case Deletion:
		return "deletion"
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// Op is one run of an MD:Z string.
type Op struct {
	Kind Kind
	// Len is the number of reference bases covered by the op.
	Len int
	// Bases holds the reference bases for Mismatch and Deletion ops.  It is
	// a subslice of the parsed string; len(Bases) == Len.  Empty for Match.
	Bases string
}

// String renders the op back in MD:Z syntax.
func (op Op) String() string {
	switch op.Kind {
	case Match:
		return fmt.Sprintf("%d", op.Len)
	case Deletion:
		return "^" + op.Bases
	}
	return op.Bases
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

// Parse appends the ops of the MD:Z string md to ops and returns the extended
// slice.  Zero-length match runs (e.g. the "0" in "5A0C5") are dropped.
// maxBases bounds the length of any single Mismatch or Deletion op; a value
// <= 0 selects DefaultMaxBases.
//
// On a malformed string, Parse returns an error of kind errors.Invalid.
func Parse(md string, ops []Op, maxBases int) ([]Op, error) {
	if maxBases <= 0 {
		maxBases = DefaultMaxBases
	}
	i := 0
	for i < len(md) {
		c := md[i]
		switch {
		case isDigit(c):
			run := int64(0)
			for i < len(md) && isDigit(md[i]) {
				run = run*10 + int64(md[i]-'0')
				if run > math.MaxInt32 {
					return ops, errors.E(errors.Invalid, fmt.Sprintf("mdz: match run overflows in %q", md))
				}
				i++
			}
			if run > 0 {
				ops = append(ops, Op{Kind: Match, Len: int(run)})
			}
		case isAlpha(c):
			st := i
			for i < len(md) && isAlpha(md[i]) {
				i++
			}
			if i-st > maxBases {
				return ops, errors.E(errors.Invalid, fmt.Sprintf("mdz: mismatch run of %d bases exceeds limit %d in %q", i-st, maxBases, md))
			}
			ops = append(ops, Op{Kind: Mismatch, Len: i - st, Bases: md[st:i]})
		case c == '^':
			i++
			st := i
			for i < len(md) && isAlpha(md[i]) {
				i++
			}
			if i == st {
				return ops, errors.E(errors.Invalid, fmt.Sprintf("mdz: '^' without deleted bases at offset %d in %q", st-1, md))
			}
			if i-st > maxBases {
				return ops, errors.E(errors.Invalid, fmt.Sprintf("mdz: deletion of %d bases exceeds limit %d in %q", i-st, maxBases, md))
			}
			ops = append(ops, Op{Kind: Deletion, Len: i - st, Bases: md[st:i]})
		default:
			return ops, errors.E(errors.Invalid, fmt.Sprintf("mdz: unknown operation %q at offset %d in %q", c, i, md))
		}
	}
	return ops, nil
}

// RefLen returns the number of reference bases covered by ops.  For a
// well-formed record it equals the number of M, =, X and D bases in the CIGAR.
func RefLen(ops []Op) int {
	n := 0
	for _, op := range ops {
		n += op.Len
	}
	return n
}
