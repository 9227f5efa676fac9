package raster

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// buildGeoTIFF assembles a minimal little-endian grayscale GeoTIFF with
// pixel-scale, tiepoint and geokey tags, the shape GeoServer's WCS emits.
func buildGeoTIFF(t *testing.T, width, height int, pixels []byte, scaleX, scaleY, originX, originY float64, geoKeyID, epsg uint16) []byte {
	t.Helper()
	if len(pixels) != width*height {
		t.Fatalf("pixels=%d want %d", len(pixels), width*height)
	}

	padded := append([]byte(nil), pixels...)
	if len(padded)%2 == 1 {
		padded = append(padded, 0)
	}
	ifdOff := 8 + len(padded)

	const (
		typeShort  = 3
		typeLong   = 4
		typeDouble = 12
		numEntries = 12
	)
	extBase := ifdOff + 2 + 12*numEntries + 4
	scaleOff := extBase
	tieOff := extBase + 3*8
	keysOff := tieOff + 6*8

	var buf bytes.Buffer
	le := binary.LittleEndian
	w16 := func(v uint16) { _ = binary.Write(&buf, le, v) }
	w32 := func(v uint32) { _ = binary.Write(&buf, le, v) }
	w64f := func(v float64) { _ = binary.Write(&buf, le, math.Float64bits(v)) }
	entry := func(tag, typ uint16, count, value uint32) {
		w16(tag)
		w16(typ)
		w32(count)
		w32(value)
	}

	buf.WriteString("II")
	w16(42)
	w32(uint32(ifdOff))
	buf.Write(padded)

	w16(numEntries)
	entry(256, typeLong, 1, uint32(width))        // ImageWidth
	entry(257, typeLong, 1, uint32(height))       // ImageLength
	entry(258, typeShort, 1, 8)                   // BitsPerSample
	entry(259, typeShort, 1, 1)                   // Compression: none
	entry(262, typeShort, 1, 1)                   // Photometric: BlackIsZero
	entry(273, typeLong, 1, 8)                    // StripOffsets
	entry(277, typeShort, 1, 1)                   // SamplesPerPixel
	entry(278, typeLong, 1, uint32(height))       // RowsPerStrip
	entry(279, typeLong, 1, uint32(len(pixels)))  // StripByteCounts
	entry(33550, typeDouble, 3, uint32(scaleOff)) // ModelPixelScale
	entry(33922, typeDouble, 6, uint32(tieOff))   // ModelTiepoint
	entry(34735, typeShort, 8, uint32(keysOff))   // GeoKeyDirectory
	w32(0)                                        // next IFD

	w64f(scaleX)
	w64f(scaleY)
	w64f(0)
	for _, v := range []float64{0, 0, 0, originX, originY, 0} {
		w64f(v)
	}
	for _, v := range []uint16{1, 1, 0, 1, geoKeyID, 0, 1, epsg} {
		w16(v)
	}

	return buf.Bytes()
}

func TestDecode_ReadsGeoTags(t *testing.T) {
	pixels := make([]byte, 16)
	pixels[1*4+1] = 42
	data := buildGeoTIFF(t, 4, 4, pixels, 0.002, 0.002, -50.103, -10.197, geoKeyGeographicType, 4326)

	ds, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gt := ds.GeoTransform()
	if gt[0] != -50.103 || gt[1] != 0.002 || gt[3] != -10.197 || gt[5] != -0.002 {
		t.Fatalf("geotransform=%v", gt)
	}
	if ds.EPSG() != 4326 {
		t.Fatalf("epsg=%d want 4326", ds.EPSG())
	}
}

func TestRowCol_GeographicCRS(t *testing.T) {
	pixels := make([]byte, 16)
	data := buildGeoTIFF(t, 4, 4, pixels, 0.002, 0.002, -50.103, -10.197, geoKeyGeographicType, 4326)
	ds, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	// The point sits mid-pixel: (x-origin)/scale = 1.5 on both axes.
	row, col, err := ds.RowCol(-10.2, -50.1)
	if err != nil {
		t.Fatalf("RowCol: %v", err)
	}
	if row != 1 || col != 1 {
		t.Fatalf("row,col=%d,%d want 1,1", row, col)
	}
}

func TestRowCol_SphericalMercator(t *testing.T) {
	ds := &Dataset{
		transform: [6]float64{0, 1000, 0, 0, 0, -1000},
		epsg:      3857,
	}
	// lon 0.01deg is ~1113m east, lat -0.01deg ~1113m south of the origin.
	row, col, err := ds.RowCol(-0.01, 0.01)
	if err != nil {
		t.Fatalf("RowCol: %v", err)
	}
	if row != 1 || col != 1 {
		t.Fatalf("row,col=%d,%d want 1,1", row, col)
	}
}

func TestRowCol_UnsupportedCRS(t *testing.T) {
	ds := &Dataset{transform: [6]float64{0, 1, 0, 0, 0, -1}, epsg: 29193}
	if _, _, err := ds.RowCol(-10, -50); err == nil {
		t.Fatalf("want error for unsupported CRS")
	}
}

func TestPixelAt_ValueAndBounds(t *testing.T) {
	pixels := make([]byte, 16)
	pixels[1*4+2] = 7
	data := buildGeoTIFF(t, 4, 4, pixels, 1, 1, 0, 4, geoKeyGeographicType, 4326)
	ds, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	v, ok := ds.PixelAt(2, 1)
	if !ok || v != 7 {
		t.Fatalf("PixelAt(2,1)=(%d,%v) want (7,true)", v, ok)
	}
	if _, ok := ds.PixelAt(4, 0); ok {
		t.Fatalf("column past the raster edge must report no value")
	}
	if _, ok := ds.PixelAt(0, -1); ok {
		t.Fatalf("negative row must report no value")
	}
}

func TestDecode_GarbageFails(t *testing.T) {
	if _, err := Decode([]byte("not a tiff at all")); err == nil {
		t.Fatalf("want decode error")
	}
}

func TestDecode_MissingGeoTagsFails(t *testing.T) {
	// A plain TIFF without the geo tags decodes as an image but carries no
	// geotransform.
	data := buildGeoTIFF(t, 2, 2, make([]byte, 4), 1, 1, 0, 0, geoKeyGeographicType, 4326)
	// Corrupt the pixel-scale tag id so the walk finds no transform.
	// Tag table starts after the header and padded pixels.
	idx := bytes.Index(data, []byte{0x0e, 0x83}) // 33550 little-endian
	if idx < 0 {
		t.Fatalf("pixel scale tag not found in fixture")
	}
	data[idx] = 0xff
	data[idx+1] = 0x7f
	if _, err := Decode(data); err == nil {
		t.Fatalf("want error when the geotransform is absent")
	}
}
