// Package elfimage gives bounds-checked, typed access to a 64-bit
// little-endian ELF image held in memory.
package elfimage

import (
	"github.com/gael12334/gt/pkg/trace"
)

// Image is the raw content of one ELF file. Every read goes through
// Resolve, so no view is ever built from bytes outside the buffer.
type Image struct {
	path  string
	data  []byte
	trace *trace.Trace
}

// NewImage wraps data without copying it. tr may be nil.
func NewImage(path string, data []byte, tr *trace.Trace) *Image {
	return &Image{path: path, data: data, trace: tr}
}

func (img *Image) Path() string { return img.path }

func (img *Image) Size() uint64 { return uint64(len(img.data)) }

func (img *Image) Trace() *trace.Trace { return img.trace }

func (img *Image) released() bool { return img.data == nil }

// Resolve returns the size bytes starting at offset. The span aliases the
// image buffer.
func (img *Image) Resolve(offset, size uint64) ([]byte, error) {
	if img.released() {
		return nil, Newf(img.trace, CodeUnloaded, "image %q is not loaded", img.path)
	}
	n := img.Size()
	if size > n || offset > n-size {
		return nil, Newf(img.trace, CodeSegfault, "offset %#x + size %#x exceeds image size %#x", offset, size, n)
	}
	return img.data[offset : offset+size : offset+size], nil
}

// Overwrite copies p into the image at offset. Only the patch engine
// mutates an image, and only inside a function's padding.
func (img *Image) Overwrite(offset uint64, p []byte) error {
	dst, err := img.Resolve(offset, uint64(len(p)))
	if err != nil {
		return Wrap(img.trace, err)
	}
	copy(dst, p)
	return nil
}

// release zeroes the buffer and detaches it.
func (img *Image) release() {
	clear(img.data)
	img.data = nil
}
