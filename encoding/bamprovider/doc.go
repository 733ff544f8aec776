// Package bamprovider provides single-pass readers for BAM and SAM files.
//
// The Provider is an interface for reading a BAM or SAM file from start to
// end; NewFakeProvider serves in-memory records to tests.
package bamprovider
