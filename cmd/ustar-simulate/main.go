// Package main writes a synthetic site-year with a known u* threshold as CSV.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/chrissnell/ustarthreshold/internal/constants"
	"github.com/chrissnell/ustarthreshold/internal/log"
	"github.com/chrissnell/ustarthreshold/internal/simulate"
)

func main() {
	def := simulate.DefaultOptions()
	out := flag.String("out", "", "Output CSV file (default: stdout)")
	seed := flag.Uint64("seed", def.Seed, "Random seed")
	year := flag.Int("year", def.Year, "Calendar year")
	threshold := flag.Float64("threshold", def.Threshold, "u* threshold in m/s")
	perDay := flag.Int("per-day", def.PerDay, "Records per day: 48 (half-hourly) or 24 (hourly)")
	noise := flag.Float64("noise", def.Noise, "Standard deviation of the NEE noise")
	missing := flag.Float64("missing", 0, "Fraction of NEE values to drop")
	sentinel := flag.Float64("sentinel", constants.MissingValue, "Value written for missing data")
	flag.Parse()

	if err := log.Init(false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *perDay != 24 && *perDay != 48 {
		log.Fatalf("per-day must be 24 or 48, got %d", *perDay)
	}
	if *threshold <= 0 {
		log.Fatalf("threshold must be positive, got %g", *threshold)
	}

	s := simulate.Generate(simulate.Options{
		Seed:        *seed,
		Year:        *year,
		Threshold:   *threshold,
		PerDay:      *perDay,
		Noise:       *noise,
		MissingFrac: *missing,
	})

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("could not create %s: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	if err := simulate.WriteCSV(bw, s, *sentinel); err != nil {
		log.Fatalf("could not write records: %v", err)
	}
	if err := bw.Flush(); err != nil {
		log.Fatalf("could not write records: %v", err)
	}
	log.Infow("wrote synthetic site-year", "records", s.Len(), "year", *year, "threshold", *threshold)
}
