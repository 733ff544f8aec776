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

// forEachRun calls fn for each maximal run of equal values in arr, in order,
// with 0-based half-open [start, end) bounds.  It stops at the first error.
func forEachRun(arr []uint32, fn func(start, end int, v uint32) error) error {
	if len(arr) == 0 {
		return nil
	}
	start, v := 0, arr[0]
	for i := 1; i < len(arr); i++ {
		if arr[i] != v {
			if err := fn(start, i, v); err != nil {
				return err
			}
			start, v = i, arr[i]
		}
	}
	return fn(start, len(arr), v)
}

// writeRuns writes the runs of arr[:n] as "<prefix>\t<chrom>\t<start>\t<end>\t<value>"
// lines.  n may be smaller than len(arr) since arrays are sized for the
// longest reference.  Zero-valued runs are dropped if skipZeros is set.
func writeRuns(out *lineWriter, prefix string, chrom int, arr []uint32, n int, skipZeros bool) error {
	if n > len(arr) {
		n = len(arr)
	}
	return forEachRun(arr[:n], func(start, end int, v uint32) error {
		if v == 0 && skipZeros {
			return nil
		}
		return out.run(prefix, chrom, start, end, v)
	})
}
