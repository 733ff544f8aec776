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
	"io"

	"github.com/grailbio/bamcount/encoding/bamprovider"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/sam"
)

// Opts selects what a counting pass reports.  Each field mirrors the
// bio-bamcount flag of the same name.
type Opts struct {
	// Coverage reports per-base depth runs.
	Coverage bool
	// ReadEnds reports runs of read start and end counts.
	ReadEnds bool
	// Alts reports mismatch, insertion and deletion events.
	Alts bool
	// IncludeSoftClip adds soft-clip events to Alts.
	IncludeSoftClip bool
	// IncludeN reports single-base mismatches where the read base is N.
	IncludeN bool
	// PrintQual appends base qualities to mismatch events.
	PrintQual bool
	// NoHead suppresses the "@<id>,<name>,<length>" lines.
	NoHead bool
	// EchoSAM writes the SAM text of every mapped record.
	EchoSAM bool
	// RequireMD makes a mapped record without MD:Z a fatal error.
	RequireMD bool
	// DoubleCount disables the overlapping-mate coverage correction.
	DoubleCount bool
	// MaxMDBases bounds a single MD:Z mismatch or deletion run.
	MaxMDBases int
}

// DefaultOpts reports nothing; callers turn on the outputs they need.
var DefaultOpts = Opts{
	MaxMDBases: 1024,
}

// Stats summarizes a counting pass.
type Stats struct {
	// Records is the number of records read, including unmapped ones.
	Records int64
	// Mapped is the number of records that reached the accumulators.
	Mapped int64
	// MissingMD is the number of records whose alt events were derived from
	// the CIGAR alone.
	MissingMD int64
	// Refs is the number of references that received at least one record.
	Refs int
	// OverlappingMates is the number of overlapping-mate boundaries recorded.
	OverlappingMates int
}

// noRef is the current-reference state before the first mapped record.
const noRef = -1

// Counter accumulates coverage, read-end and alt-event statistics over a
// coordinate-sorted stream of records.  Call Add for every record in file
// order, then Close.
//
// Per-reference arrays are sized for the longest reference in the header and
// reused across references.  Records must be grouped by reference; a
// reference that reappears after another one is flushed a second time.
type Counter struct {
	opts Opts
	refs []*sam.Reference
	out  *lineWriter
	alts *altEmitter

	ref      int
	coverage []uint32
	starts   []uint32
	ends     []uint32
	mates    *mateTable
	visited  []bool
	warned   bool

	stats Stats
}

// NewCounter creates a Counter writing to w.  Unless opts.NoHead is set it
// writes the reference header lines immediately.
func NewCounter(header *sam.Header, w io.Writer, opts Opts) (*Counter, error) {
	c := &Counter{
		opts: opts,
		refs: header.Refs(),
		out:  newLineWriter(w),
		ref:  noRef,
	}
	c.visited = make([]bool, len(c.refs))
	maxLen := 0
	for _, ref := range c.refs {
		if ref.Len() > maxLen {
			maxLen = ref.Len()
		}
	}
	if opts.Coverage {
		c.coverage = make([]uint32, maxLen)
		if !opts.DoubleCount {
			c.mates = newMateTable()
		}
	}
	if opts.ReadEnds {
		c.starts = make([]uint32, maxLen)
		c.ends = make([]uint32, maxLen)
	}
	if opts.Alts {
		c.alts = newAltEmitter(c.out, &c.opts)
	}
	if !opts.NoHead {
		for _, ref := range c.refs {
			if err := c.out.refHeader(ref); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Add processes one record.  Unmapped records, and records without a
// reference or a position, are only counted.  The record
// is not retained.
func (c *Counter) Add(rec *sam.Record) error {
	c.stats.Records++
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil || rec.Pos < 0 {
		return nil
	}
	c.stats.Mapped++
	if id := rec.Ref.ID(); id != c.ref {
		if err := c.switchRef(id); err != nil {
			return recordError(err, rec)
		}
	}
	end := -1
	if c.opts.Coverage {
		end = addCoverage(rec, c.coverage, c.mates)
	}
	if c.opts.ReadEnds {
		if end < 0 {
			end = refEnd(rec)
		}
		addReadEnds(rec, end, c.starts, c.ends)
	}
	if c.opts.EchoSAM {
		text, err := rec.MarshalText()
		if err != nil {
			return recordError(errors.E(err, "could not format SAM record"), rec)
		}
		if err := c.out.line(unsafe.BytesToString(text)); err != nil {
			return err
		}
	}
	if c.opts.Alts {
		if err := c.alts.add(rec); err != nil {
			return recordError(err, rec)
		}
	}
	return nil
}

// switchRef flushes the arrays of the current reference, clears them, and
// makes id the current reference.
func (c *Counter) switchRef(id int) error {
	if id < 0 || id >= len(c.refs) {
		return errors.E(errors.Invalid, fmt.Sprintf("reference ID %d not in header", id))
	}
	if c.ref != noRef {
		if err := c.flush(); err != nil {
			return err
		}
		clear32(c.coverage)
		clear32(c.starts)
		clear32(c.ends)
		if c.mates != nil {
			c.stats.OverlappingMates += c.mates.len()
			c.mates.reset()
		}
	}
	if c.visited[id] {
		if !c.warned {
			log.Error.Printf("bamcount: reference %s appears in more than one block; input is not sorted by reference and its runs will be reported more than once", c.refs[id].Name())
			c.warned = true
		}
	} else {
		c.visited[id] = true
		c.stats.Refs++
	}
	log.Debug.Printf("bamcount: starting reference %s", c.refs[id].Name())
	c.ref = id
	return nil
}

func clear32(a []uint32) {
	for i := range a {
		a[i] = 0
	}
}

// flush writes the runs of the current reference's arrays.
func (c *Counter) flush() error {
	n := c.refs[c.ref].Len()
	if c.opts.Coverage {
		if err := writeRuns(c.out, "cov", c.ref, c.coverage, n, false); err != nil {
			return err
		}
	}
	if c.opts.ReadEnds {
		if err := writeRuns(c.out, "start", c.ref, c.starts, n, true); err != nil {
			return err
		}
		if err := writeRuns(c.out, "end", c.ref, c.ends, n, true); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the last reference, writes the record-count line and flushes
// the output.  It returns the statistics of the pass.
func (c *Counter) Close() (Stats, error) {
	if c.ref != noRef {
		if err := c.flush(); err != nil {
			return c.stats, err
		}
	}
	if c.alts != nil {
		c.stats.MissingMD = c.alts.nMissingMD
	}
	if c.mates != nil {
		c.stats.OverlappingMates += c.mates.len()
		c.mates.reset()
	}
	if err := c.out.line(fmt.Sprintf("Read %d records", c.stats.Records)); err != nil {
		return c.stats, err
	}
	return c.stats, c.out.flush()
}

// recordError annotates err with the identity of rec.  The error kind of err
// is preserved.
func recordError(err error, rec *sam.Record) error {
	return errors.E(err, fmt.Sprintf("read %s at %s:%d", rec.Name, rec.Ref.Name(), rec.Pos))
}

// Count reads every record of provider and writes the statistics selected by
// opts to w.
func Count(provider bamprovider.Provider, w io.Writer, opts Opts) (stats Stats, err error) {
	header, err := provider.GetHeader()
	if err != nil {
		return stats, errors.E(errors.Unavailable, err)
	}
	c, err := NewCounter(header, w, opts)
	if err != nil {
		return stats, err
	}
	iter := provider.NewIterator()
	for iter.Scan() {
		rec := iter.Record()
		err = c.Add(rec)
		sam.PutInFreePool(rec)
		if err != nil {
			if e := iter.Close(); e != nil {
				log.Error.Printf("bamcount: close iterator: %v", e)
			}
			if e := c.out.flush(); e != nil {
				log.Error.Printf("bamcount: flush output: %v", e)
			}
			return c.stats, err
		}
	}
	if err = iter.Close(); err != nil {
		return c.stats, errors.E(errors.Unavailable, err)
	}
	return c.Close()
}
