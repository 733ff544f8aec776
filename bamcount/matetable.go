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
	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/unsafe"
)

// mateTable maps a read name to the last reference position covered by the
// first-seen mate of an overlapping, properly paired fragment.  The table
// holds one reference at a time; the controller resets it on every reference
// transition.
//
// Names are keyed by their 64-bit seahash so the table does not retain the
// record's name string.
type mateTable struct {
	ends map[uint64]int
}

func newMateTable() *mateTable {
	return &mateTable{ends: make(map[uint64]int)}
}

func mateKey(name string) uint64 {
	return seahash.Sum64(unsafe.StringToBytes(name))
}

// lookup returns the recorded boundary for name.
func (m *mateTable) lookup(name string) (int, bool) {
	end, ok := m.ends[mateKey(name)]
	return end, ok
}

// set records end as name's boundary.  A later call for the same name
// overwrites the earlier one.
func (m *mateTable) set(name string, end int) {
	m.ends[mateKey(name)] = end
}

func (m *mateTable) len() int { return len(m.ends) }

// reset drops all boundaries.  Mates of a pair share a reference, so entries
// never carry over to the next reference.
func (m *mateTable) reset() {
	for k := range m.ends {
		delete(m.ends, k)
	}
}
