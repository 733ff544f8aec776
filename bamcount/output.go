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
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/sam"
)

// seq8ToASCII is the .bam seq nibble -> ASCII mapping.
var seq8ToASCII = [...]byte{'=', 'A', 'C', 'M', 'G', 'R', 'S', 'V', 'T', 'W', 'Y', 'H', 'K', 'D', 'B', 'N'}

// seq8N is the .bam seq nibble for 'N'.
const seq8N = 15

// qualMissing is the value hts stores in every Qual byte when QUAL is '*'.
const qualMissing = 0xff

// seq8At returns the 4-bit code of the i'th base of seq.
func seq8At(seq sam.Seq, i int) byte {
	d := seq.Seq[i>>1]
	if i&1 == 0 {
		return byte(d >> 4)
	}
	return byte(d & 0xf)
}

// lineWriter renders output lines.  Event and header lines are
// comma-separated and written as a single TSV field; run lines are
// tab-separated.
type lineWriter struct {
	w   *tsv.Writer
	buf []byte
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: tsv.NewWriter(w)}
}

// startEvent begins a "<chrom>,<pos>,<op>," line.
func (lw *lineWriter) startEvent(chrom, pos int, op byte) {
	lw.buf = strconv.AppendInt(lw.buf[:0], int64(chrom), 10)
	lw.buf = append(lw.buf, ',')
	lw.buf = strconv.AppendInt(lw.buf, int64(pos), 10)
	lw.buf = append(lw.buf, ',', op, ',')
}

// appendBases appends seq[off:off+n] in ASCII.  A record without a stored
// sequence renders as "*".
func (lw *lineWriter) appendBases(seq sam.Seq, off, n int) {
	if seq.Length == 0 {
		lw.buf = append(lw.buf, '*')
		return
	}
	for i := off; i < off+n; i++ {
		lw.buf = append(lw.buf, seq8ToASCII[seq8At(seq, i)])
	}
}

// appendQuals appends ",<quals>" with qual[off:off+n] rendered as Phred+33.
func (lw *lineWriter) appendQuals(qual []byte, off, n int) {
	lw.buf = append(lw.buf, ',')
	if off+n > len(qual) || qual[off] == qualMissing {
		lw.buf = append(lw.buf, '*')
		return
	}
	for _, q := range qual[off : off+n] {
		lw.buf = append(lw.buf, q+33)
	}
}

func (lw *lineWriter) endEvent() error {
	lw.w.WriteString(unsafe.BytesToString(lw.buf))
	return lw.w.EndLine()
}

// deletion writes "<chrom>,<pos>,D,<n>".
func (lw *lineWriter) deletion(chrom, pos, n int) error {
	lw.startEvent(chrom, pos, 'D')
	lw.buf = strconv.AppendInt(lw.buf, int64(n), 10)
	return lw.endEvent()
}

// bases writes "<chrom>,<pos>,<op>,<seq[off:off+n]>".
func (lw *lineWriter) bases(chrom, pos int, op byte, seq sam.Seq, off, n int) error {
	lw.startEvent(chrom, pos, op)
	lw.appendBases(seq, off, n)
	return lw.endEvent()
}

// refHeader writes "@<index>,<name>,<length>".
func (lw *lineWriter) refHeader(ref *sam.Reference) error {
	lw.buf = append(lw.buf[:0], '@')
	lw.buf = strconv.AppendInt(lw.buf, int64(ref.ID()), 10)
	lw.buf = append(lw.buf, ',')
	lw.buf = append(lw.buf, ref.Name()...)
	lw.buf = append(lw.buf, ',')
	lw.buf = strconv.AppendInt(lw.buf, int64(ref.Len()), 10)
	return lw.endEvent()
}

// run writes "<prefix>\t<chrom>\t<start>\t<end>\t<value>".
func (lw *lineWriter) run(prefix string, chrom, start, end int, v uint32) error {
	lw.w.WriteString(prefix)
	lw.w.WriteInt64(int64(chrom))
	lw.w.WriteInt64(int64(start))
	lw.w.WriteInt64(int64(end))
	lw.w.WriteUint32(v)
	return lw.w.EndLine()
}

// line writes s verbatim as one line.
func (lw *lineWriter) line(s string) error {
	lw.w.WriteString(s)
	return lw.w.EndLine()
}

func (lw *lineWriter) flush() error {
	return lw.w.Flush()
}
