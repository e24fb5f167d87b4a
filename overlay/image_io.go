package overlay

import (
	"bytes"
	"image"
	"io"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/segeval"
	_ "golang.org/x/image/bmp"
)

// ImageFromBytes creates an image from the specified bytes. Must be PNG, GIF,
// BMP, or JPEG formatted (based on the decoders we have imported).
func ImageFromBytes(imgBytes []byte) (image.Image, error) {
	imgReader := bytes.NewReader(imgBytes)

	// Extract and decode the image.
	img, _, err := image.Decode(imgReader)

	return img, err
}

// OpenImageFromLocalFileOrGoogleStorage opens and decodes one mask image.
func OpenImageFromLocalFileOrGoogleStorage(filePath string, storageClient *storage.Client) (image.Image, error) {
	f, err := segeval.MaybeOpenFromGoogleStorage(filePath, storageClient)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// The image decoder swallows errors, so we won't see i/o errors if they
	// happen during image decoding. To capture these, we read the full image
	// into memory here, and pass a byte reader to the image decoder.
	imgBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return ImageFromBytes(imgBytes)
}
