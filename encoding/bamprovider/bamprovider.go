package bamprovider

import (
	"io"

	baseerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

// BAMProvider implements Provider for BAM files.  The path may be any URL
// understood by grailbio/base/file; local paths are read from the local
// filesystem.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	err  baseerrors.Once

	nActive int
	header  *sam.Header
}

type bamIterator struct {
	provider *BAMProvider
	in       file.File
	reader   *bam.Reader
	err      error
	next     *sam.Record
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	if b.header != nil {
		return b.header, nil
	}
	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		err = errors.Wrapf(err, "bamprovider: open %s", b.Path)
		b.err.Set(err)
		return nil, err
	}
	defer in.Close(ctx)
	bamReader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		err = errors.Wrapf(err, "bamprovider: read header of %s", b.Path)
		b.err.Set(err)
		return nil, err
	}
	defer bamReader.Close()
	b.header = bamReader.Header()
	return b.header, nil
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	if b.nActive > 0 {
		vlog.Fatalf("%d iterators still active for %+v", b.nActive, b)
	}
	return b.err.Err()
}

// NewIterator implements the Provider interface.
func (b *BAMProvider) NewIterator() Iterator {
	b.nActive++
	iter := &bamIterator{provider: b}
	ctx := vcontext.Background()
	if iter.in, iter.err = file.Open(ctx, b.Path); iter.err != nil {
		iter.err = errors.Wrapf(iter.err, "bamprovider: open %s", b.Path)
		return iter
	}
	if iter.reader, iter.err = bam.NewReader(iter.in.Reader(ctx), 1); iter.err != nil {
		iter.err = errors.Wrapf(iter.err, "bamprovider: read header of %s", b.Path)
	}
	return iter
}

// Scan implements the Iterator interface.
func (i *bamIterator) Scan() bool {
	if i.err != nil {
		return false
	}
	i.next, i.err = i.reader.Read()
	if i.err != nil && i.err != io.EOF {
		i.err = errors.Wrapf(i.err, "bamprovider: read %s", i.provider.Path)
	}
	return i.err == nil
}

// Record implements the Iterator interface.
func (i *bamIterator) Record() *sam.Record {
	return i.next
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.Err() == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.Err() == nil {
			i.err = err
		}
		i.in = nil
	}
	err := i.Err()
	i.provider.err.Set(err)
	i.provider.nActive--
	if i.provider.nActive < 0 {
		vlog.Fatalf("Negative active count for %+v", i.provider)
	}
	return err
}
