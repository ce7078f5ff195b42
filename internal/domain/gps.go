package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// GPSParser converts free text typed by a user into coordinates.
type GPSParser interface {
	Parse(text string) (lat, lon MicroDegrees, err error)
}

// GPSFormatter renders coordinates as text. It must be pure and deterministic.
type GPSFormatter interface {
	Format(lat, lon MicroDegrees) string
}

// GPS is the default parser and formatter.
type GPS struct{}

func (GPS) Parse(text string) (MicroDegrees, MicroDegrees, error) { return ParseGPS(text) }
func (GPS) Format(lat, lon MicroDegrees) string                  { return FormatGPS(lat, lon) }

// FormatGPS renders coordinates as hemisphere-prefixed decimal degrees.
// Example: (10500000, -20250000) -> "N10.500000 W20.250000"
//
// Six decimals keep the full micro-degree precision, so two positions format
// to the same text if and only if they are equal.
func FormatGPS(lat, lon MicroDegrees) string {
	return formatAxis(lat, 'N', 'S') + " " + formatAxis(lon, 'E', 'W')
}

func formatAxis(v MicroDegrees, pos, neg byte) string {
	hemi := pos
	a := int64(v)
	if a < 0 {
		hemi = neg
		a = -a
	}
	return fmt.Sprintf("%c%d.%06d", hemi, a/1000000, a%1000000)
}

// gpsToken is either a hemisphere letter or a numeric component.
type gpsToken struct {
	hemi byte
	num  string
}

// gpsGroup collects the components of one axis.
type gpsGroup struct {
	hemi byte
	nums []string
}

// ParseGPS accepts the usual ways divers write positions:
//   - "10.5, -20.25" or "10.5 -20.25"           signed decimal degrees
//   - "N10.5 W20.25" or "10.5N 20.25W"          hemisphere letters, prefix or suffix
//   - "N10°30.000' W20°15.000'"                 degrees and decimal minutes
//   - "10°30'15\"N 20°15'0\"W"                  degrees, minutes and seconds
//
// Any failure is reported as ErrParseFailure.
func ParseGPS(text string) (MicroDegrees, MicroDegrees, error) {
	tokens, err := tokenizeGPS(text)
	if err != nil {
		return 0, 0, err
	}

	groups, err := groupGPS(tokens)
	if err != nil {
		return 0, 0, err
	}

	var (
		lat, lon         float64
		haveLat, haveLon bool
	)
	for i, g := range groups {
		v, err := groupValue(g)
		if err != nil {
			return 0, 0, err
		}
		switch g.hemi {
		case 'N', 'S':
			if haveLat {
				return 0, 0, fmt.Errorf("%w: two latitudes", ErrParseFailure)
			}
			lat, haveLat = v, true
		case 'E', 'W':
			if haveLon {
				return 0, 0, fmt.Errorf("%w: two longitudes", ErrParseFailure)
			}
			lon, haveLon = v, true
		default:
			// Bare numbers: latitude first
			if i == 0 {
				lat, haveLat = v, true
			} else {
				lon, haveLon = v, true
			}
		}
	}

	if !haveLat || !haveLon {
		return 0, 0, fmt.Errorf("%w: need a latitude and a longitude", ErrParseFailure)
	}
	if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return 0, 0, fmt.Errorf("%w: out of range", ErrParseFailure)
	}

	return MicroDegreesFromFloat(lat), MicroDegreesFromFloat(lon), nil
}

func tokenizeGPS(text string) ([]gpsToken, error) {
	var (
		tokens []gpsToken
		buf    strings.Builder
	)
	flush := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, gpsToken{num: buf.String()})
			buf.Reset()
		}
	}

	for _, r := range strings.ToUpper(text) {
		switch {
		case unicode.IsDigit(r) || r == '.' || r == '-' || r == '+':
			buf.WriteRune(r)
		case r == 'N' || r == 'S' || r == 'E' || r == 'W':
			flush()
			tokens = append(tokens, gpsToken{hemi: byte(r)})
		case unicode.IsSpace(r) || strings.ContainsRune(",;°º'\"′″’”", r):
			flush()
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrParseFailure, r)
		}
	}
	flush()

	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrParseFailure)
	}
	return tokens, nil
}

func groupGPS(tokens []gpsToken) ([]gpsGroup, error) {
	hasHemi := false
	for _, t := range tokens {
		if t.hemi != 0 {
			hasHemi = true
			break
		}
	}

	if !hasHemi {
		// Split the numbers evenly: 2 -> D D, 4 -> DM DM, 6 -> DMS DMS
		n := len(tokens)
		if n%2 != 0 || n > 6 {
			return nil, fmt.Errorf("%w: expected 2, 4 or 6 numbers, got %d", ErrParseFailure, n)
		}
		half := n / 2
		groups := []gpsGroup{{}, {}}
		for i, t := range tokens {
			groups[i/half].nums = append(groups[i/half].nums, t.num)
		}
		return groups, nil
	}

	var groups []gpsGroup
	if tokens[0].hemi != 0 {
		// Prefix notation: each letter opens a group
		for _, t := range tokens {
			if t.hemi != 0 {
				groups = append(groups, gpsGroup{hemi: t.hemi})
				continue
			}
			last := &groups[len(groups)-1]
			last.nums = append(last.nums, t.num)
		}
	} else {
		// Suffix notation: each letter closes a group
		var cur gpsGroup
		for _, t := range tokens {
			if t.hemi == 0 {
				cur.nums = append(cur.nums, t.num)
				continue
			}
			if len(cur.nums) == 0 {
				return nil, fmt.Errorf("%w: hemisphere without value", ErrParseFailure)
			}
			cur.hemi = t.hemi
			groups = append(groups, cur)
			cur = gpsGroup{}
		}
		if len(cur.nums) > 0 {
			return nil, fmt.Errorf("%w: value without hemisphere", ErrParseFailure)
		}
	}

	if len(groups) != 2 {
		return nil, fmt.Errorf("%w: expected 2 axes, got %d", ErrParseFailure, len(groups))
	}
	return groups, nil
}

func groupValue(g gpsGroup) (float64, error) {
	if len(g.nums) == 0 || len(g.nums) > 3 {
		return 0, fmt.Errorf("%w: malformed axis", ErrParseFailure)
	}

	negative := false
	var value float64
	for i, raw := range g.nums {
		if i > 0 && (strings.HasPrefix(raw, "-") || strings.HasPrefix(raw, "+")) {
			return 0, fmt.Errorf("%w: signed minutes or seconds", ErrParseFailure)
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrParseFailure, raw)
		}
		switch i {
		case 0:
			negative = strings.HasPrefix(raw, "-")
			value = math.Abs(f)
		default:
			if f >= 60 {
				return 0, fmt.Errorf("%w: minutes or seconds out of range", ErrParseFailure)
			}
			value += f / math.Pow(60, float64(i))
		}
	}

	if negative && g.hemi != 0 {
		return 0, fmt.Errorf("%w: sign and hemisphere both given", ErrParseFailure)
	}
	if negative || g.hemi == 'S' || g.hemi == 'W' {
		value = -value
	}
	return value, nil
}
