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
Given a BAM or SAM sorted by reference, bio-bamcount reports differences from
the reference (using the MD:Z field when present), per-base coverage, and
counts of read starts and ends, in a single pass.  See package
github.com/grailbio/bamcount/bamcount for the output format.

Sample usage:
bio-bamcount \
    --coverage \
    --read-ends \
    --alts --include-softclip \
    --out counts.tsv.gz --format tsv-bgz \
    my.bam
*/
package main
