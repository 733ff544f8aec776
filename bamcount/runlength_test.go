package bamcount

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRun struct {
	start, end int
	v          uint32
}

func collectRuns(t *testing.T, arr []uint32) []testRun {
	var runs []testRun
	require.NoError(t, forEachRun(arr, func(start, end int, v uint32) error {
		runs = append(runs, testRun{start, end, v})
		return nil
	}))
	return runs
}

func TestForEachRun(t *testing.T) {
	assert.Equal(t, []testRun(nil), collectRuns(t, nil))
	assert.Equal(t, []testRun{{0, 1, 7}}, collectRuns(t, []uint32{7}))
	assert.Equal(t,
		[]testRun{{0, 1, 0}, {1, 4, 1}, {4, 5, 0}, {5, 7, 1}, {7, 8, 0}},
		collectRuns(t, []uint32{0, 1, 1, 1, 0, 1, 1, 0}))
}

// Runs tile the array, and adjacent runs never share a value.
func TestForEachRunRandom(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for iter := 0; iter < 200; iter++ {
		arr := make([]uint32, 1+r.Intn(50))
		for i := range arr {
			arr[i] = uint32(r.Intn(3))
		}
		runs := collectRuns(t, arr)
		expect.EQ(t, runs[0].start, 0)
		expect.EQ(t, runs[len(runs)-1].end, len(arr))
		for i, run := range runs {
			expect.True(t, run.start < run.end)
			for z := run.start; z < run.end; z++ {
				expect.EQ(t, arr[z], run.v)
			}
			if i > 0 {
				expect.EQ(t, runs[i-1].end, run.start)
				expect.True(t, runs[i-1].v != run.v)
			}
		}
	}
}

func TestWriteRuns(t *testing.T) {
	arr := []uint32{0, 2, 2, 0, 0, 1, 0, 0, 3, 3}
	var buf bytes.Buffer
	out := newLineWriter(&buf)
	// Only the first 8 entries belong to the reference.
	require.NoError(t, writeRuns(out, "cov", 1, arr, 8, false))
	require.NoError(t, writeRuns(out, "start", 1, arr, 8, true))
	require.NoError(t, out.flush())
	assert.Equal(t, []string{
		"cov\t1\t0\t1\t0",
		"cov\t1\t1\t3\t2",
		"cov\t1\t3\t5\t0",
		"cov\t1\t5\t6\t1",
		"cov\t1\t6\t8\t0",
		"start\t1\t1\t3\t2",
		"start\t1\t5\t6\t1",
	}, splitLines(buf.String()))
}
