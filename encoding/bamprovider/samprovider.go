package bamprovider

import (
	"io"

	baseerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"v.io/x/lib/vlog"
)

// SAMProvider implements Provider for SAM text files.  A path ending in ".gz"
// is decompressed on the fly.
type SAMProvider struct {
	// Path of the *.sam or *.sam.gz file. Must be nonempty.
	Path string
	err  baseerrors.Once

	nActive int
	header  *sam.Header
}

type samIterator struct {
	provider *SAMProvider
	in       file.File
	gz       *gzip.Reader
	reader   *sam.Reader
	err      error
	next     *sam.Record
}

// open opens the file and positions a sam.Reader after the header.
func (b *SAMProvider) open(iter *samIterator) {
	ctx := vcontext.Background()
	if iter.in, iter.err = file.Open(ctx, b.Path); iter.err != nil {
		iter.err = errors.Wrapf(iter.err, "bamprovider: open %s", b.Path)
		return
	}
	r := io.Reader(iter.in.Reader(ctx))
	if fileio.DetermineType(b.Path) == fileio.Gzip {
		if iter.gz, iter.err = gzip.NewReader(r); iter.err != nil {
			iter.err = errors.Wrapf(iter.err, "bamprovider: gunzip %s", b.Path)
			return
		}
		r = iter.gz
	}
	if iter.reader, iter.err = sam.NewReader(r); iter.err != nil {
		iter.err = errors.Wrapf(iter.err, "bamprovider: read header of %s", b.Path)
	}
}

// GetHeader implements the Provider interface.
func (b *SAMProvider) GetHeader() (*sam.Header, error) {
	if b.header != nil {
		return b.header, nil
	}
	iter := samIterator{provider: b}
	b.open(&iter)
	if iter.err == nil {
		b.header = iter.reader.Header()
	}
	err := iter.Err()
	if cerr := iter.closeFiles(); err == nil {
		err = cerr
	}
	b.err.Set(err)
	return b.header, err
}

// Close implements the Provider interface.
func (b *SAMProvider) Close() error {
	if b.nActive > 0 {
		vlog.Fatalf("%d iterators still active for %+v", b.nActive, b)
	}
	return b.err.Err()
}

// NewIterator implements the Provider interface.
func (b *SAMProvider) NewIterator() Iterator {
	b.nActive++
	iter := &samIterator{provider: b}
	b.open(iter)
	return iter
}

// Scan implements the Iterator interface.
func (i *samIterator) Scan() bool {
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
func (i *samIterator) Record() *sam.Record {
	return i.next
}

// Err implements the Iterator interface.
func (i *samIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

func (i *samIterator) closeFiles() error {
	var err error
	if i.gz != nil {
		err = i.gz.Close()
		i.gz = nil
	}
	if i.in != nil {
		if e := i.in.Close(vcontext.Background()); e != nil && err == nil {
			err = e
		}
		i.in = nil
	}
	i.reader = nil
	return err
}

// Close implements the Iterator interface.
func (i *samIterator) Close() error {
	if err := i.closeFiles(); err != nil && i.Err() == nil {
		i.err = err
	}
	err := i.Err()
	i.provider.err.Set(err)
	i.provider.nActive--
	if i.provider.nActive < 0 {
		vlog.Fatalf("Negative active count for %+v", i.provider)
	}
	return err
}
