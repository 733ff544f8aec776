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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/grailbio/bamcount/encoding/bamprovider"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bgzf"
)

// Output formats accepted by Run.
const (
	FormatTSV    = "tsv"
	FormatTSVBgz = "tsv-bgz"
)

// Run counts the records of the BAM or SAM file at xampath and writes the
// result to outPath ("" or "-" for stdout) in the given format.
//
// The input header is read before the output is created, so an unreadable
// input produces no output.
func Run(ctx context.Context, xampath, outPath, format string, opts Opts) (stats Stats, err error) {
	if format == "" {
		format = FormatTSV
	}
	if format != FormatTSV && format != FormatTSVBgz {
		return stats, errors.E(errors.Invalid, fmt.Sprintf("unknown output format %q", format))
	}
	provider := bamprovider.NewProvider(xampath)
	defer func() {
		if e := provider.Close(); e != nil && err == nil {
			err = errors.E(errors.Unavailable, e)
		}
	}()
	if _, err = provider.GetHeader(); err != nil {
		return stats, errors.E(errors.Unavailable, err)
	}

	var w io.Writer = os.Stdout
	if outPath != "" && outPath != "-" {
		var dst file.File
		if dst, err = file.Create(ctx, outPath); err != nil {
			return
		}
		defer func() {
			if e := dst.Close(ctx); e != nil && err == nil {
				err = e
			}
		}()
		w = dst.Writer(ctx)
	}
	if format == FormatTSVBgz {
		bgzfWriter := bgzf.NewWriter(w, 1)
		defer func() {
			if e := bgzfWriter.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = bgzfWriter
	}

	if stats, err = Count(provider, w, opts); err != nil {
		return
	}
	log.Printf("bamcount: %s: %d records, %d mapped, %d references, %d without MD:Z, %d overlapping mates",
		xampath, stats.Records, stats.Mapped, stats.Refs, stats.MissingMD, stats.OverlappingMates)
	return
}
