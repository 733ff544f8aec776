package bamprovider

import (
	"strings"

	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Type forces the input format. If Unknown, the type is guessed from the
	// path.
	Type FileType
}

// Provider reads the records of a BAM or SAM file in a single forward pass.
// Thread compatible.
type Provider interface {
	// GetHeader returns the header of the file.  The caller must not modify
	// the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator over all records in file order, mapped
	// and unmapped alike.
	//
	// REQUIRES: Close has not been called.
	NewIterator() Iterator

	// Close must be called exactly once. It returns any error encountered
	// by the provider, or any iterator created by the provider.
	//
	// REQUIRES: All the iterators created by NewIterator have been closed.
	Close() error
}

// Iterator iterates over sam.Records in file order. Thread compatible.
type Iterator interface {
	// Scan returns where there are any records remaining in the iterator,
	// and if so, advances the iterator to the next record. At the end of
	// the file, Scan() returns false.  If an error occurs, Scan() returns
	// false and the error can be retrieved by calling Err().
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record in the iterator. This must be
	// called only after a call to Scan() returns true.  The caller owns the
	// record and may return it to the sam free pool.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encoutered during iteration, or nil if no error
	// occurred.  An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// FileType represents the type of an alignment file.
type FileType int

const (
	// Unknown is a sentinel.
	Unknown FileType = iota
	// BAM file
	BAM
	// SAM file, optionally gzip-compressed.
	SAM
)

// ParseFileType parses the file type string. "bam" returns bamprovider.BAM, for
// example. On error, it returns Unknown.
func ParseFileType(name string) FileType {
	switch name {
	case "bam":
		return BAM
	case "sam":
		return SAM
	default:
		return Unknown
	}
}

// GuessFileType returns the file type from the pathname. Returns Unknown if
// the suffix is not recognized.
func GuessFileType(path string) FileType {
	switch {
	case strings.HasSuffix(path, ".bam"):
		return BAM
	case strings.HasSuffix(path, ".sam"), strings.HasSuffix(path, ".sam.gz"):
		return SAM
	}
	vlog.VI(1).Infof("%v: could not detect file type.", path)
	return Unknown
}

// NewProvider creates a Provider object that can handle the BAM or SAM file of
// "path". Unless opts say otherwise the file type is autodetected from the
// path, and unrecognized paths are read as BAM.
func NewProvider(path string, optList ...ProviderOpts) Provider {
	typ := Unknown
	for _, o := range optList {
		if o.Type != Unknown {
			typ = o.Type
		}
	}
	if typ == Unknown {
		typ = GuessFileType(path)
	}
	switch typ {
	case BAM, Unknown:
		return &BAMProvider{Path: path}
	case SAM:
		return &SAMProvider{Path: path}
	}
	panic("shouldn't reach here")
}

type errorIterator struct {
	err error
}

func (i *errorIterator) Scan() bool          { return false }
func (i *errorIterator) Record() *sam.Record { panic("shall not be called") }
func (i *errorIterator) Err() error          { return i.err }
func (i *errorIterator) Close() error        { return i.err }

// NewErrorIterator creates an Iterator that yields no record and returns "err"
// in Err and Close.
func NewErrorIterator(err error) Iterator {
	return &errorIterator{err: err}
}
