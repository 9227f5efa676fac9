// Package samplecache memoizes raster pixel samples. A sample is a pure
// function of its request tuple, so identical keys always carry identical
// values and entries never need invalidation.
package samplecache

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/geosense/landtraj/internal/model"
)

// Key derives the cache key for one sample request. The full tuple is
// hashed so that any parameter change yields a distinct key; a sanitized
// prefix keeps keys readable in cache dumps.
func Key(coverage string, srid int, bbox [4]float64, grid model.GridShape, timestamp string, p model.SpatialPoint) string {
	tuple := fmt.Sprintf("%s|%d|%v,%v,%v,%v|%dx%d|%s|%v,%v,%d",
		coverage, srid,
		bbox[0], bbox[1], bbox[2], bbox[3],
		grid.Columns, grid.Rows,
		timestamp,
		p.X, p.Y, p.SRID,
	)
	sum := xxhash.Sum64String(tuple)
	return fmt.Sprintf("sample:%s:%s:%016x", sanitize(coverage), sanitize(timestamp), sum)
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
