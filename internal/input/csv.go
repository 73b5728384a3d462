// Package input reads site-year flux records from flat CSV files into the
// series consumed by the threshold estimator.
package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chrissnell/ustarthreshold/internal/ustar"
	"github.com/chrissnell/ustarthreshold/pkg/solar"
)

// ErrMissingColumn is returned when a required column is absent from the
// header.
var ErrMissingColumn = errors.New("input: missing required column")

// Options controls how raw values are interpreted.
type Options struct {
	// Sentinel marks missing values, typically -9999.
	Sentinel float64
	Year     int

	// Location used to derive the night flag when the file has none.
	Latitude  float64
	Longitude float64
	UTCOffset float64
}

type column int

const (
	colTime column = iota
	colNEE
	colUStar
	colTemp
	colNight
	nColumns
)

var columnNames = [nColumns][]string{
	colTime:  {"t", "DoY", "dtime"},
	colNEE:   {"NEE", "nee"},
	colUStar: {"uStar", "ustar", "USTAR"},
	colTemp:  {"T", "Ta", "TA", "Tair"},
	colNight: {"fNight", "night"},
}

// Load reads the CSV file at path.
func Load(path string, opts Options) (ustar.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return ustar.Series{}, err
	}
	defer f.Close()

	s, err := Read(f, opts)
	if err != nil {
		return ustar.Series{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Read parses a CSV stream with a header row naming the t, NEE, uStar and T
// columns and optionally fNight. Empty cells, NaN and the sentinel become
// NaN. Without an fNight column the night flag is derived from the solar
// elevation at the configured location.
func Read(r io.Reader, opts Options) (ustar.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		return ustar.Series{}, fmt.Errorf("reading header: %w", err)
	}
	idx, err := mapColumns(header)
	if err != nil {
		return ustar.Series{}, err
	}

	s := ustar.Series{Year: opts.Year}
	hasNight := idx[colNight] >= 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ustar.Series{}, err
		}
		line, _ := cr.FieldPos(0)

		var vals [colNight]float64
		for c := colTime; c < colNight; c++ {
			v, err := parseValue(rec[idx[c]], opts.Sentinel)
			if err != nil {
				return ustar.Series{}, fmt.Errorf("line %d column %s: %w", line, header[idx[c]], err)
			}
			vals[c] = v
		}
		s.T = append(s.T, vals[colTime])
		s.NEE = append(s.NEE, vals[colNEE])
		s.UStar = append(s.UStar, vals[colUStar])
		s.Temp = append(s.Temp, vals[colTemp])

		if hasNight {
			night, err := parseFlag(rec[idx[colNight]], opts.Sentinel)
			if err != nil {
				return ustar.Series{}, fmt.Errorf("line %d column %s: %w", line, header[idx[colNight]], err)
			}
			s.Night = append(s.Night, night)
		}
	}

	if !hasNight {
		s.Night = solar.NightFlags(s.T, opts.Year, opts.Latitude, opts.Longitude, opts.UTCOffset)
	}
	return s, nil
}

func mapColumns(header []string) ([nColumns]int, error) {
	var idx [nColumns]int
	for c := range idx {
		idx[c] = -1
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		for c, names := range columnNames {
			for _, name := range names {
				if h == name && idx[c] < 0 {
					idx[c] = i
				}
			}
		}
	}
	for c := colTime; c < colNight; c++ {
		if idx[c] < 0 {
			return idx, fmt.Errorf("%w: %s", ErrMissingColumn, columnNames[c][0])
		}
	}
	return idx, nil
}

func parseValue(field string, sentinel float64) (float64, error) {
	field = strings.TrimSpace(field)
	if field == "" || strings.EqualFold(field, "nan") || strings.EqualFold(field, "na") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, err
	}
	if math.Abs(v-sentinel) < 1e-6 {
		return math.NaN(), nil
	}
	return v, nil
}

func parseFlag(field string, sentinel float64) (bool, error) {
	if b, err := strconv.ParseBool(strings.TrimSpace(field)); err == nil {
		return b, nil
	}
	v, err := parseValue(field, sentinel)
	if err != nil {
		return false, err
	}
	return v > 0.5, nil
}
