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
	"fmt"

	"github.com/grailbio/bamcount/encoding/mdz"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

var mdTag = sam.NewTag("MD")

// altEmitter writes mismatch, insertion, deletion and soft-clip events.
type altEmitter struct {
	out             *lineWriter
	includeSoftClip bool
	includeN        bool
	printQual       bool
	requireMD       bool
	maxMDBases      int

	// qualChecked is set once the first record has been inspected for
	// qualities.
	qualChecked bool
	// nMissingMD counts records handled by the CIGAR-only walker.
	nMissingMD int64
	ops        []mdz.Op
}

func newAltEmitter(out *lineWriter, opts *Opts) *altEmitter {
	return &altEmitter{
		out:             out,
		includeSoftClip: opts.IncludeSoftClip,
		includeN:        opts.IncludeN,
		printQual:       opts.PrintQual,
		requireMD:       opts.RequireMD,
		maxMDBases:      opts.MaxMDBases,
	}
}

// add emits the events of a mapped record.  It uses the MD:Z field when the
// record has one and falls back to the CIGAR otherwise.
func (a *altEmitter) add(rec *sam.Record) error {
	if !a.qualChecked {
		a.qualChecked = true
		if a.printQual && (len(rec.Qual) == 0 || rec.Qual[0] == qualMissing) {
			log.Error.Printf("print-qual specified but quality strings don't seem to be present")
			a.printQual = false
		}
	}
	aux := rec.AuxFields.Get(mdTag)
	if aux == nil {
		if a.requireMD {
			return errors.E(errors.NotExist, "no MD:Z field for aligned read")
		}
		a.nMissingMD++
		return a.fromCigar(rec)
	}
	md, ok := aux.Value().(string)
	if !ok {
		return errors.E(errors.Invalid, fmt.Sprintf("MD field has type %c, want Z", aux.Type()))
	}
	var err error
	if a.ops, err = mdz.Parse(md, a.ops[:0], a.maxMDBases); err != nil {
		return err
	}
	return a.fromCigarMD(rec, a.ops)
}

func checkSeqLen(rec *sam.Record, off, n int) error {
	if rec.Seq.Length != 0 && off+n > rec.Seq.Length {
		return errors.E(errors.Invalid, fmt.Sprintf("CIGAR %v consumes more than the %d stored bases", rec.Cigar, rec.Seq.Length))
	}
	return nil
}

// fromCigar emits events using only the CIGAR.  Mismatches inside M
// operations are not visible this way.
func (a *altEmitter) fromCigar(rec *sam.Record) error {
	if len(rec.Cigar) == 1 {
		return nil
	}
	chrom := rec.Ref.ID()
	refPos := rec.Pos
	seqPos := 0
	for _, co := range rec.Cigar {
		n := co.Len()
		switch t := co.Type(); t {
		case sam.CigarDeletion:
			if err := a.out.deletion(chrom, refPos, n); err != nil {
				return err
			}
			refPos += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			if err := checkSeqLen(rec, seqPos, n); err != nil {
				return err
			}
			if err := a.out.bases(chrom, refPos, t.String()[0], rec.Seq, seqPos, n); err != nil {
				return err
			}
			seqPos += n
		case sam.CigarSkipped:
			refPos += n
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			seqPos += n
			refPos += n
		case sam.CigarHardClipped, sam.CigarPadded:
		default:
			return errors.E(errors.NotSupported, fmt.Sprintf("no such CIGAR operation as %d", t))
		}
	}
	return nil
}

// fromCigarMD walks the CIGAR and the parsed MD:Z ops in lockstep.  ops is
// modified in place: partially consumed runs are shortened.
func (a *altEmitter) fromCigarMD(rec *sam.Record, ops []mdz.Op) error {
	chrom := rec.Ref.ID()
	refPos := rec.Pos
	seqPos := 0
	mdi := 0
	for _, co := range rec.Cigar {
		n := co.Len()
		switch t := co.Type(); t {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if err := checkSeqLen(rec, seqPos, n); err != nil {
				return err
			}
			for left := n; left > 0; {
				if mdi >= len(ops) {
					return errors.E(errors.Integrity, fmt.Sprintf("MD:Z exhausted with %d bases of CIGAR %v left", left, co))
				}
				op := &ops[mdi]
				if op.Kind == mdz.Deletion {
					return errors.E(errors.Integrity, fmt.Sprintf("CIGAR/MD:Z mismatch: %v aligned against MD:Z deletion %v", co, *op))
				}
				run := left
				if op.Len < run {
					run = op.Len
				}
				if op.Kind == mdz.Mismatch {
					if err := a.mismatch(rec, chrom, refPos, seqPos, run); err != nil {
						return err
					}
				}
				left -= run
				seqPos += run
				refPos += run
				if run < op.Len {
					op.Len -= run
					if op.Kind == mdz.Mismatch {
						op.Bases = op.Bases[run:]
					}
				} else {
					mdi++
				}
			}
		case sam.CigarInsertion:
			if err := checkSeqLen(rec, seqPos, n); err != nil {
				return err
			}
			if err := a.out.bases(chrom, refPos, 'I', rec.Seq, seqPos, n); err != nil {
				return err
			}
			seqPos += n
		case sam.CigarSoftClipped:
			if a.includeSoftClip {
				if err := checkSeqLen(rec, seqPos, n); err != nil {
					return err
				}
				if err := a.out.bases(chrom, refPos, 'S', rec.Seq, seqPos, n); err != nil {
					return err
				}
			}
			seqPos += n
		case sam.CigarDeletion:
			if mdi >= len(ops) {
				return errors.E(errors.Integrity, fmt.Sprintf("MD:Z exhausted before CIGAR %v", co))
			}
			op := ops[mdi]
			if op.Kind != mdz.Deletion || op.Len != n {
				return errors.E(errors.Integrity, fmt.Sprintf("CIGAR/MD:Z mismatch: %v aligned against MD:Z %s %v", co, op.Kind, op))
			}
			mdi++
			if err := a.out.deletion(chrom, refPos, n); err != nil {
				return err
			}
			refPos += n
		case sam.CigarSkipped:
			refPos += n
		case sam.CigarHardClipped, sam.CigarPadded:
		default:
			return errors.E(errors.NotSupported, fmt.Sprintf("no such CIGAR operation as %d", t))
		}
	}
	if mdi != len(ops) {
		return errors.E(errors.Integrity, fmt.Sprintf("MD:Z has %d unconsumed ops after CIGAR %v", len(ops)-mdi, rec.Cigar))
	}
	return nil
}

// mismatch writes an X event for the n read bases at seqPos, unless it is a
// lone N and N mismatches are not requested.
func (a *altEmitter) mismatch(rec *sam.Record, chrom, refPos, seqPos, n int) error {
	if !a.includeN && n == 1 && rec.Seq.Length != 0 && seq8At(rec.Seq, seqPos) == seq8N {
		return nil
	}
	a.out.startEvent(chrom, refPos, 'X')
	a.out.appendBases(rec.Seq, seqPos, n)
	if a.printQual {
		a.out.appendQuals(rec.Qual, seqPos, n)
	}
	return a.out.endEvent()
}
