// Package raster decodes GeoTIFF coverages in memory and extracts single
// pixel values for trajectory queries.
package raster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/tiff"

	"github.com/geosense/landtraj/internal/errs"
)

// GeoTIFF private tags and geokeys carrying the georeferencing.
const (
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735

	geoKeyGeographicType = 2048
	geoKeyProjectedCS    = 3072
)

// Dataset is one decoded coverage held only for the duration of a pixel
// extraction; the backing buffer is garbage once the Dataset goes out of
// scope.
type Dataset struct {
	img image.Image
	// transform is the affine geotransform in GDAL order:
	// [originX, pixelWidth, rotX, originY, rotY, -pixelHeight].
	transform [6]float64
	epsg      int
}

// Decode reads the pixel raster and the georeferencing tags from raw
// GeoTIFF bytes.
func Decode(data []byte) (*Dataset, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode tiff: %w", err)
	}
	transform, epsg, err := readGeoTags(data)
	if err != nil {
		return nil, err
	}
	return &Dataset{img: img, transform: transform, epsg: epsg}, nil
}

// GeoTransform returns the dataset's affine geotransform.
func (d *Dataset) GeoTransform() [6]float64 { return d.transform }

// EPSG returns the dataset's spatial reference code; zero means the tags
// carried none and the CRS is assumed geographic.
func (d *Dataset) EPSG() int { return d.epsg }

// PixelAt extracts the single-band value at (col, row). Out-of-raster
// indices report no value rather than panicking.
func (d *Dataset) PixelAt(col, row int) (int32, bool) {
	b := d.img.Bounds()
	x, y := b.Min.X+col, b.Min.Y+row
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return 0, false
	}
	switch img := d.img.(type) {
	case *image.Gray:
		return int32(img.GrayAt(x, y).Y), true
	case *image.Gray16:
		return int32(img.Gray16At(x, y).Y), true
	case *image.Paletted:
		return int32(img.ColorIndexAt(x, y)), true
	default:
		r, _, _, _ := d.img.At(x, y).RGBA()
		return int32(r >> 8), true
	}
}

// readGeoTags walks the first IFD for the GeoTIFF georeferencing tags.
// x/image/tiff does not surface private tags, so the walk is done here.
func readGeoTags(data []byte) ([6]float64, int, error) {
	var zero [6]float64
	if len(data) < 8 {
		return zero, 0, fmt.Errorf("geotiff header truncated: %w", errs.ErrInvalidParameter)
	}

	var bo binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		bo = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		bo = binary.BigEndian
	default:
		return zero, 0, fmt.Errorf("geotiff byte-order mark %q: %w", data[:2], errs.ErrInvalidParameter)
	}
	if bo.Uint16(data[2:4]) != 42 {
		return zero, 0, fmt.Errorf("geotiff magic missing: %w", errs.ErrInvalidParameter)
	}

	ifdOff := int(bo.Uint32(data[4:8]))
	if ifdOff+2 > len(data) {
		return zero, 0, fmt.Errorf("geotiff ifd out of range: %w", errs.ErrInvalidParameter)
	}
	n := int(bo.Uint16(data[ifdOff : ifdOff+2]))

	var scale, tiepoint, matrix []float64
	var geoKeys []uint16
	for i := 0; i < n; i++ {
		entry := ifdOff + 2 + 12*i
		if entry+12 > len(data) {
			return zero, 0, fmt.Errorf("geotiff ifd entry out of range: %w", errs.ErrInvalidParameter)
		}
		tag := bo.Uint16(data[entry : entry+2])
		count := int(bo.Uint32(data[entry+4 : entry+8]))
		valueOff := data[entry+8 : entry+12]

		var err error
		switch tag {
		case tagModelPixelScale:
			scale, err = readDoubles(data, bo, valueOff, count)
		case tagModelTiepoint:
			tiepoint, err = readDoubles(data, bo, valueOff, count)
		case tagModelTransformation:
			matrix, err = readDoubles(data, bo, valueOff, count)
		case tagGeoKeyDirectory:
			geoKeys, err = readShorts(data, bo, valueOff, count)
		}
		if err != nil {
			return zero, 0, err
		}
	}

	transform, err := buildTransform(scale, tiepoint, matrix)
	if err != nil {
		return zero, 0, err
	}
	return transform, epsgFromGeoKeys(geoKeys), nil
}

func buildTransform(scale, tiepoint, matrix []float64) ([6]float64, error) {
	if len(matrix) == 16 {
		return [6]float64{matrix[3], matrix[0], matrix[1], matrix[7], matrix[4], matrix[5]}, nil
	}
	if len(scale) >= 2 && len(tiepoint) >= 6 {
		originX := tiepoint[3] - tiepoint[0]*scale[0]
		originY := tiepoint[4] + tiepoint[1]*scale[1]
		return [6]float64{originX, scale[0], 0, originY, 0, -scale[1]}, nil
	}
	return [6]float64{}, fmt.Errorf("geotiff carries no geotransform: %w", errs.ErrInvalidParameter)
}

// epsgFromGeoKeys reads the CRS code, preferring a projected CS over a
// geographic one. 32767 is "user defined" and carries no usable code.
func epsgFromGeoKeys(keys []uint16) int {
	if len(keys) < 4 {
		return 0
	}
	numKeys := int(keys[3])
	geographic, projected := 0, 0
	for i := 0; i < numKeys; i++ {
		base := 4 + 4*i
		if base+4 > len(keys) {
			break
		}
		keyID, location, value := keys[base], keys[base+1], keys[base+3]
		if location != 0 || value == 32767 {
			continue
		}
		switch keyID {
		case geoKeyProjectedCS:
			projected = int(value)
		case geoKeyGeographicType:
			geographic = int(value)
		}
	}
	if projected != 0 {
		return projected
	}
	return geographic
}

func readDoubles(data []byte, bo binary.ByteOrder, valueOff []byte, count int) ([]float64, error) {
	off := int(bo.Uint32(valueOff))
	if off+8*count > len(data) {
		return nil, fmt.Errorf("geotiff tag values out of range: %w", errs.ErrInvalidParameter)
	}
	out := make([]float64, count)
	for i := range out {
		bits := bo.Uint64(data[off+8*i : off+8*i+8])
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}

func readShorts(data []byte, bo binary.ByteOrder, valueOff []byte, count int) ([]uint16, error) {
	if count*2 <= 4 {
		out := make([]uint16, count)
		for i := range out {
			out[i] = bo.Uint16(valueOff[2*i : 2*i+2])
		}
		return out, nil
	}
	off := int(bo.Uint32(valueOff))
	if off+2*count > len(data) {
		return nil, fmt.Errorf("geotiff tag values out of range: %w", errs.ErrInvalidParameter)
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = bo.Uint16(data[off+2*i : off+2*i+2])
	}
	return out, nil
}
