package volume

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/carbocation/segeval"
	"github.com/henghuang/nifti"
)

// LoadLabelsNifti reads a .nii or .nii.gz label volume. The returned shape is
// (x, y, z) and the spacing comes from pixdim[1:4]. Paths under gs:// are
// fetched with client first.
func LoadLabelsNifti(path string, client *storage.Client) (Labels, Spacing, error) {
	local, cleanup, err := localCopy(path, client)
	if err != nil {
		return Labels{}, Spacing{}, err
	}
	defer cleanup()

	img, err := SafelyNiftiParse(local, true)
	if err != nil {
		return Labels{}, Spacing{}, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}

	header, err := SafelyNiftiHeaderParse(local)
	if err != nil {
		return Labels{}, Spacing{}, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}

	xm, ym, zm, tm := niftiExtents(img)
	if tm > 1 {
		return Labels{}, Spacing{}, fmt.Errorf("%s: label volume has %d timepoints, expected 1", path, tm)
	}

	voxels := make([]int32, 0, xm*ym*zm)
	for x := 0; x < xm; x++ {
		for y := 0; y < ym; y++ {
			for z := 0; z < zm; z++ {
				voxels = append(voxels, int32(img.GetAt(x, y, z, 0)))
			}
		}
	}

	labels, err := NewLabels([]int{xm, ym, zm}, voxels)
	if err != nil {
		return Labels{}, Spacing{}, pfx.Err(err)
	}

	spacing := Spacing{float64(header.Pixdim[1]), float64(header.Pixdim[2]), float64(header.Pixdim[3])}

	return labels, spacing, nil
}

// LoadFieldNifti reads a deformation field stored as a 4D NIfTI whose fourth
// axis holds the x, y and z displacement components.
func LoadFieldNifti(path string, client *storage.Client) (Field, error) {
	local, cleanup, err := localCopy(path, client)
	if err != nil {
		return Field{}, err
	}
	defer cleanup()

	img, err := SafelyNiftiParse(local, true)
	if err != nil {
		return Field{}, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}

	xm, ym, zm, tm := niftiExtents(img)
	if tm != 3 {
		return Field{}, fmt.Errorf("%s: deformation field has %d components along the 4th axis, expected 3", path, tm)
	}

	components := make([]float64, 0, 3*xm*ym*zm)
	for t := 0; t < 3; t++ {
		for x := 0; x < xm; x++ {
			for y := 0; y < ym; y++ {
				for z := 0; z < zm; z++ {
					components = append(components, float64(img.GetAt(x, y, z, t)))
				}
			}
		}
	}

	return NewField([]int{3, xm, ym, zm}, components)
}

// SafelyNiftiParse consumes panics emitted by the nifti library, which are
// inappropriate and must be captured in order to turn them into recoverable
// errors.
func SafelyNiftiParse(filename string, rdata bool) (parsedData nifti.Nifti1Image, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsedData.LoadImage(filename, rdata)

	return
}

// SafelyNiftiHeaderParse is the header-only counterpart of SafelyNiftiParse.
func SafelyNiftiHeaderParse(filename string) (parsedData nifti.Nifti1Header, err error) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			err = fmt.Errorf("%v", panicErr)
		}
	}()

	parsedData.LoadHeader(filename)

	return
}

func niftiExtents(img nifti.Nifti1Image) (xm, ym, zm, tm int) {
	dims := img.GetDims()
	xm, ym, zm, tm = dims[0], dims[1], dims[2], dims[3]

	// 3D files may leave the time extent unset
	if zm < 1 {
		zm = 1
	}
	if tm < 1 {
		tm = 1
	}

	return
}

// localCopy returns a path the nifti library can open directly. Remote objects
// are copied into a temporary file that cleanup removes.
func localCopy(path string, client *storage.Client) (string, func(), error) {
	if !strings.HasPrefix(path, "gs://") {
		return segeval.ExpandHome(path), func() {}, nil
	}

	src, err := segeval.MaybeOpenFromGoogleStorage(path, client)
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	// The nifti library decides on gzip from the file name
	ext := ".nii"
	if strings.HasSuffix(path, ".nii.gz") {
		ext = ".nii.gz"
	}

	dst, err := os.CreateTemp("", "segeval-*"+ext)
	if err != nil {
		return "", nil, pfx.Err(err)
	}

	cleanup := func() { os.Remove(dst.Name()) }

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		cleanup()
		return "", nil, pfx.Err(fmt.Errorf("%s: %v", path, err))
	}

	if err := dst.Close(); err != nil {
		cleanup()
		return "", nil, pfx.Err(err)
	}

	return filepath.Clean(dst.Name()), cleanup, nil
}
