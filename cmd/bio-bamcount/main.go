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
package main

import (
	"fmt"

	"github.com/grailbio/bamcount/bamcount"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

func newCmdBamcount() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "bio-bamcount",
		Short:    "Report alt events, coverage and read ends of a sorted BAM/SAM",
		ArgsName: "xampath",
		LookPath: false,
	}
	opts := bamcount.DefaultOpts
	cmd.Flags.BoolVar(&opts.ReadEnds, "read-ends", opts.ReadEnds, "Print counts of read starts/ends")
	cmd.Flags.BoolVar(&opts.Coverage, "coverage", opts.Coverage, "Print per-base coverage")
	cmd.Flags.BoolVar(&opts.Alts, "alts", opts.Alts, "Print differing from ref per-base coverages")
	cmd.Flags.BoolVar(&opts.IncludeSoftClip, "include-softclip", opts.IncludeSoftClip, "With -alts, print a record for soft-clipped bases")
	cmd.Flags.BoolVar(&opts.IncludeN, "include-n", opts.IncludeN, "With -alts, print mismatch records when the mismatched read base is N")
	cmd.Flags.BoolVar(&opts.PrintQual, "print-qual", opts.PrintQual, "With -alts, print quality values for mismatched bases")
	cmd.Flags.BoolVar(&opts.RequireMD, "require-mdz", opts.RequireMD, "With -alts, quit with error unless the MD:Z field exists everywhere it's expected")
	cmd.Flags.IntVar(&opts.MaxMDBases, "max-md-bases", opts.MaxMDBases, "Upper bound on the number of bases in a single MD:Z mismatch or deletion run")
	cmd.Flags.BoolVar(&opts.NoHead, "no-head", opts.NoHead, "Don't print sequence names and lengths in header")
	cmd.Flags.BoolVar(&opts.EchoSAM, "echo-sam", opts.EchoSAM, "Print a SAM record for each aligned read")
	cmd.Flags.BoolVar(&opts.DoubleCount, "double-count", opts.DoubleCount, "Allow overlapping ends of PE read to count twice toward coverage")
	outPath := cmd.Flags.String("out", "", "Output path; stdout if empty")
	format := cmd.Flags.String("format", bamcount.FormatTSV, "Output format; 'tsv' and 'tsv-bgz' supported")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("bio-bamcount takes one pathname argument, but got %v", argv)
		}
		ctx := vcontext.Background()
		_, err := bamcount.Run(ctx, argv[0], *outPath, *format, opts)
		return err
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdBamcount())
}
