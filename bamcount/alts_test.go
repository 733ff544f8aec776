package bamcount

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRefs(t *testing.T, lens ...int) (*sam.Header, []*sam.Reference) {
	var refs []*sam.Reference
	for i, n := range lens {
		ref, err := sam.NewReference("chr"+string(rune('1'+i)), "", "", n, nil, nil)
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	header, err := sam.NewHeader(nil, refs)
	require.NoError(t, err)
	return header, refs
}

// newTestRecord creates a mapped record.  An empty md leaves out the MD:Z
// field.
func newTestRecord(t *testing.T, name string, ref *sam.Reference, pos int, cigar, seq, md string) *sam.Record {
	co, err := sam.ParseCigar([]byte(cigar))
	require.NoError(t, err)
	r := &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MatePos: -1,
		Cigar:   co,
		Seq:     sam.NewSeq([]byte(seq)),
	}
	if seq != "" {
		r.Qual = bytes.Repeat([]byte{30}, len(seq))
	}
	if md != "" {
		aux, err := sam.NewAux(mdTag, md)
		require.NoError(t, err)
		r.AuxFields = append(r.AuxFields, aux)
	}
	return r
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func altLines(t *testing.T, opts Opts, recs ...*sam.Record) ([]string, error) {
	var buf bytes.Buffer
	out := newLineWriter(&buf)
	a := newAltEmitter(out, &opts)
	var err error
	for _, r := range recs {
		if err = a.add(r); err != nil {
			break
		}
	}
	require.NoError(t, out.flush())
	return splitLines(buf.String()), err
}

func TestAltsSingleMismatch(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	r := newTestRecord(t, "r", refs[0], 100, "16M", "AAAAAAAAAAGAAAAA", "10A5")
	got, err := altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"0,110,X,G"}, got)
}

func TestAltsDeletion(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	r := newTestRecord(t, "r", refs[0], 200, "5M3D5M", "CCCCCGGGGG", "5^AAA5")
	got, err := altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"0,205,D,3"}, got)
}

func TestAltsInsertionAndSkip(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	// 3M 2I 2M 10N 3M; MD covers the 8 M bases.
	r := newTestRecord(t, "r", refs[0], 10, "3M2I2M10N3M", "ACGTTACGTA", "4C3")
	got, err := altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	// Aligned bases are at 10-14 and 25-27; the 5th one mismatches.
	assert.Equal(t, []string{"0,13,I,TT", "0,14,X,C"}, got)
}

func TestAltsNMismatch(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	r := newTestRecord(t, "r", refs[0], 0, "5M", "ACNGT", "2A2")
	got, err := altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	expect.EQ(t, len(got), 0)

	opts := DefaultOpts
	opts.IncludeN = true
	got, err = altLines(t, opts, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"0,2,X,N"}, got)

	// Multi-base mismatch runs are reported even when they contain N.
	r = newTestRecord(t, "r", refs[0], 0, "5M", "ACNGT", "2AA1")
	got, err = altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"0,2,X,NG"}, got)
}

func TestAltsSoftClip(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	r := newTestRecord(t, "r", refs[0], 50, "2S4M", "TTACGA", "3A0")
	got, err := altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	// The soft clip still advances the read offset.
	assert.Equal(t, []string{"0,53,X,A"}, got)

	opts := DefaultOpts
	opts.IncludeSoftClip = true
	got, err = altLines(t, opts, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"0,50,S,TT", "0,53,X,A"}, got)
}

func TestAltsMismatchSpanningCigarOps(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	// The two-base mismatch run is split by the insertion.
	r := newTestRecord(t, "r", refs[0], 0, "3M1I3M", "ACGTACG", "2GT2")
	got, err := altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"0,2,X,G", "0,3,I,T", "0,3,X,A"}, got)
}

func TestAltsPrintQual(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	r := newTestRecord(t, "r", refs[0], 100, "16M", "AAAAAAAAAAGAAAAA", "10A5")
	r.Qual[10] = 40
	opts := DefaultOpts
	opts.PrintQual = true
	got, err := altLines(t, opts, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"0,110,X,G,I"}, got)

	// Without qualities on the first record, qualities are turned off.
	noQual := newTestRecord(t, "r", refs[0], 100, "16M", "AAAAAAAAAAGAAAAA", "10A5")
	noQual.Qual = nil
	got, err = altLines(t, opts, noQual, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"0,110,X,G", "0,110,X,G"}, got)
}

func TestAltsIdempotent(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	r := newTestRecord(t, "r", refs[0], 7, "2S3M1I4M2D3M", "GGACTTAGTCCAT", "1T2C0A1^TT3")
	first, err := altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	second, err := altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"0,8,X,C", "0,10,I,T", "0,11,X,G", "0,12,X,T", "0,14,D,2"}, first)
}

func TestAltsCigarOnly(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	// Mismatches are invisible without MD:Z.
	r := newTestRecord(t, "r", refs[0], 100, "16M", "AAAAAAAAAAGAAAAA", "")
	got, err := altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	expect.EQ(t, len(got), 0)

	r = newTestRecord(t, "r", refs[0], 20, "2S3M2I1M4D2M5N1M1H", "TTACGCCAGTC", "")
	got, err = altLines(t, DefaultOpts, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"0,20,S,TT", "0,23,I,CC", "0,24,D,4"}, got)
}

func TestAltsRequireMD(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	r := newTestRecord(t, "r", refs[0], 100, "5M1D5M", "AAAAAAAAAA", "")
	opts := DefaultOpts
	opts.RequireMD = true
	_, err := altLines(t, opts, r)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.NotExist, err))
}

func TestAltsErrors(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	tests := []struct {
		cigar, seq, md string
		kind           errors.Kind
		msg            string
	}{
		// MD:Z shorter than the CIGAR.
		{"10M", "AAAAAAAAAA", "8", errors.Integrity, "exhausted"},
		{"5M2D3M", "AAAAAAAA", "5", errors.Integrity, "exhausted"},
		// MD:Z longer than the CIGAR.
		{"5M", "AAAAA", "5^A", errors.Integrity, "unconsumed"},
		{"5M", "AAAAA", "7", errors.Integrity, "unconsumed"},
		// Deletion in the wrong place, or of the wrong length.
		{"5M", "AAAAA", "2^AC3", errors.Integrity, "mismatch"},
		{"2M2D3M", "AAAAA", "2^A4", errors.Integrity, "mismatch"},
		{"2M2D3M", "AAAAA", "2A4", errors.Integrity, "mismatch"},
		// Malformed MD:Z.
		{"5M", "AAAAA", "2?3", errors.Invalid, "unknown operation"},
		// CIGAR consumes more read bases than stored.
		{"6M", "AAAAA", "6", errors.Invalid, "stored bases"},
	}
	for _, tt := range tests {
		r := newTestRecord(t, "r", refs[0], 0, tt.cigar, tt.seq, tt.md)
		_, err := altLines(t, DefaultOpts, r)
		require.Error(t, err, "%+v", tt)
		assert.True(t, errors.Is(tt.kind, err), "%+v: %v", tt, err)
		assert.Contains(t, err.Error(), tt.msg, "%+v", tt)
	}
}

func TestAltsUnsupportedCigarOp(t *testing.T) {
	_, refs := newTestRefs(t, 1000)
	for _, md := range []string{"4", ""} {
		r := newTestRecord(t, "r", refs[0], 10, "2M", "AAAA", md)
		r.Cigar = sam.Cigar{
			sam.NewCigarOp(sam.CigarMatch, 2),
			sam.NewCigarOp(sam.CigarBack, 1),
			sam.NewCigarOp(sam.CigarMatch, 2),
		}
		_, err := altLines(t, DefaultOpts, r)
		require.Error(t, err)
		assert.True(t, errors.Is(errors.NotSupported, err), "md=%q: %v", md, err)
	}
}
