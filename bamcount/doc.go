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

/*
Package bamcount makes one pass over a coordinate-sorted BAM or SAM file and
reports, depending on Opts:

  - alt events: one line per mismatch, insertion, deletion and (optionally)
    soft clip, derived from the CIGAR and the MD:Z field.  Records without
    MD:Z fall back to the CIGAR alone, which cannot see mismatches.

      <ref ID>,<0-based pos>,X,<read bases>[,<quals>]
      <ref ID>,<0-based pos>,I,<read bases>
      <ref ID>,<0-based pos>,S,<read bases>
      <ref ID>,<0-based pos>,D,<length>

  - per-base coverage, as runs of equal depth over the whole reference.
    Where the two mates of a properly paired fragment overlap, the overlap is
    counted once unless Opts.DoubleCount is set.

      cov	<ref ID>	<start>	<end>	<depth>

  - read starts and ends: the number of reads whose first (last) aligned base
    falls on each position, as runs; zero runs are omitted.

      start	<ref ID>	<start>	<end>	<count>
      end	<ref ID>	<start>	<end>	<count>

Intervals are 0-based and half-open.  Runs for a reference are written when
the next reference starts and at the end of the input, so they follow the alt
events of that reference.  The output starts with "@<ref ID>,<name>,<length>"
lines unless Opts.NoHead is set and ends with "Read <n> records", where n
includes unmapped records.
*/
package bamcount
