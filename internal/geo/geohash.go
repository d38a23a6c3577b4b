// Package geo provides the distance and coarse-location helpers used on the
// serving path: haversine distance for proximity scoring, and geohash
// encoding so logs and caches only ever see a neighborhood-sized cell
// instead of exact coordinates.
package geo

// DefaultPrecision is the geohash length used for coarse location. Six
// characters is roughly a 1.2 km by 0.6 km cell: enough to key caches by
// neighborhood without pinpointing a venue.
const DefaultPrecision = 6

// geohashAlphabet is the standard base32 geohash alphabet (no a, i, l, o).
const geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the geohash cell containing (lat, lng) at the given
// precision. A precision below 1 falls back to DefaultPrecision.
//
// Standard interleaved bisection: even bits halve the longitude range, odd
// bits the latitude range, five bits per output character.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = DefaultPrecision
	}

	latMin, latMax := -90.0, 90.0
	lngMin, lngMax := -180.0, 180.0

	out := make([]byte, 0, precision)
	var ch uint
	bits := 0
	evenBit := true

	for len(out) < precision {
		if evenBit {
			mid := (lngMin + lngMax) / 2
			if lng > mid {
				ch |= 1 << (4 - bits)
				lngMin = mid
			} else {
				lngMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat > mid {
				ch |= 1 << (4 - bits)
				latMin = mid
			} else {
				latMax = mid
			}
		}
		evenBit = !evenBit

		if bits++; bits == 5 {
			out = append(out, geohashAlphabet[ch])
			bits, ch = 0, 0
		}
	}

	return string(out)
}
