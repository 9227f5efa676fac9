package raster

import (
	"fmt"
	"math"

	"github.com/geosense/landtraj/internal/errs"
)

// geographicEPSG lists the geographic reference systems the service
// encounters; zero covers datasets whose geokeys carried no code.
var geographicEPSG = map[int]bool{
	0:    true,
	4326: true, // WGS 84
	4269: true, // NAD 83
	4618: true, // SAD 69
	4674: true, // SIRGAS 2000
}

const earthRadius = 6378137.0

// projectLonLat projects a geographic coordinate into the dataset's CRS.
func projectLonLat(epsg int, lon, lat float64) (x, y float64, err error) {
	if geographicEPSG[epsg] {
		return lon, lat, nil
	}
	switch epsg {
	case 3857, 3785, 900913: // spherical mercator and its aliases
		x = earthRadius * lon * math.Pi / 180
		y = earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
		return x, y, nil
	}
	return 0, 0, fmt.Errorf("unsupported raster crs EPSG:%d: %w", epsg, errs.ErrInvalidParameter)
}

// RowCol converts a (lat, long) pair into the dataset's pixel indices
// using the raster's own geotransform and spatial reference, not the
// caller's nominal SRID.
func (d *Dataset) RowCol(lat, lon float64) (row, col int, err error) {
	x, y, err := projectLonLat(d.epsg, lon, lat)
	if err != nil {
		return 0, 0, err
	}
	gt := d.transform
	if gt[1] == 0 || gt[5] == 0 {
		return 0, 0, fmt.Errorf("degenerate geotransform %v: %w", gt, errs.ErrInvalidParameter)
	}
	col = int(math.Floor((x - gt[0]) / gt[1]))
	row = int(math.Floor((gt[3] - y) / -gt[5]))
	return row, col, nil
}
