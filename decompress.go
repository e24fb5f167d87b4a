package segeval

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/carbocation/pfx"
	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeNoCompression DataType = iota
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

// Byte code signatures from https://stackoverflow.com/a/19127748/199475
var byteCodeSigs = []struct {
	dt  DataType
	sig []byte
}{
	{DataTypeGzip, []byte{0x1f, 0x8b, 0x08}},
	{DataTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{DataTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{DataTypeZ, []byte{0x1f, 0x9d}},
	{DataTypeBZip2, []byte{0x42, 0x5a, 0x68}},
}

// DetectDataType matches the leading bytes of a stream against known
// compression signatures. Anything unrecognized, including streams shorter
// than a signature, is reported as uncompressed.
func DetectDataType(head []byte) DataType {
	for _, v := range byteCodeSigs {
		if bytes.HasPrefix(head, v.sig) {
			return v.dt
		}
	}

	return DataTypeNoCompression
}

// MaybeDecompress wraps rc with a decompressor if its contents start with a
// known signature. Closing the result closes rc. For zip archives only the
// first entry is read.
func MaybeDecompress(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)

	// Streams shorter than the longest signature are still valid input
	head, peekErr := br.Peek(6)
	if peekErr != nil && peekErr != io.EOF && peekErr != bufio.ErrBufferFull {
		return nil, pfx.Err(peekErr)
	}

	var r io.Reader
	var err error
	switch DetectDataType(head) {
	case DataTypeGzip:
		r, err = gzip.NewReader(br)
	case DataTypeZip:
		zr := zipstream.NewReader(br)
		_, err = zr.Next()
		r = zr
	case DataTypeBZip2:
		r = bzip2.NewReader(br)
	case DataTypeXZ:
		r, err = xz.NewReader(br, 0)
	case DataTypeZ:
		r, err = zlib.NewReader(br)
	default:
		r = br
	}
	if err != nil {
		return nil, pfx.Err(err)
	}

	return &readCloser{Reader: r, closer: rc}, nil
}

// readCloser pairs a decompressing reader with the source it must close.
type readCloser struct {
	io.Reader
	closer io.Closer
}

func (c *readCloser) Close() error {
	return c.closer.Close()
}
