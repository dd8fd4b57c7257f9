// Command genmock writes synthetic weather feeds (interior temperature,
// exterior temperature and wind speed) into a PHPFina directory, for demos
// and manual runs of the infiltration process. Output is reproducible for a
// given seed.
//
// Usage:
//
//	go run ./cmd/genmock -dir /tmp/phpfina -days 7 -interval 600
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/alexandrecuer/postprocess/internal/adapter/phpfina"
	"github.com/alexandrecuer/postprocess/internal/feed"
)

var baseDate = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

// weather generates one sample per timestep; hour is the local hour of day.
type weather func(hour float64, r *rand.Rand) float64

var feeds = []struct {
	name string
	gen  weather
}{
	{"tint", func(hour float64, r *rand.Rand) float64 {
		return 19.5 + 1.5*math.Sin((hour-9)*math.Pi/12) + 0.2*r.NormFloat64()
	}},
	{"text", func(hour float64, r *rand.Rand) float64 {
		return 4 + 5*math.Sin((hour-10)*math.Pi/12) + 0.8*r.NormFloat64()
	}},
	{"ws", func(_ float64, r *rand.Rand) float64 {
		return math.Max(0, 3.5+2*r.NormFloat64())
	}},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("dir", "", "PHPFina feed directory")
	userID := flag.Int("userid", 1, "owner of the generated feeds")
	days := flag.Int("days", 7, "number of days to generate")
	interval := flag.Int64("interval", 600, "sample interval in seconds")
	seed := flag.Uint64("seed", 1, "random seed")
	gapEvery := flag.Int("gap-every", 0, "write a missing sample every n samples, 0 for none")
	flag.Parse()

	if *dir == "" || *days < 1 || *interval < 1 {
		flag.Usage()
		return fmt.Errorf("missing or invalid flags")
	}

	logger := sharedobs.NewLogger("info", "text")
	store, err := phpfina.Open(*dir, logger)
	if err != nil {
		return err
	}

	n := int64(*days) * 86400 / *interval
	meta := feed.Meta{Interval: *interval, StartTime: baseDate.Unix()}
	r := rand.New(rand.NewPCG(*seed, 0))

	for _, f := range feeds {
		values := make([]float64, n)
		for i := range values {
			t := time.Unix(meta.TimeAt(int64(i)), 0).UTC()
			hour := float64(t.Hour()) + float64(t.Minute())/60
			values[i] = math.Round(f.gen(hour, r)*10) / 10
			if *gapEvery > 0 && i > 0 && i%*gapEvery == 0 {
				values[i] = math.NaN()
			}
		}

		id, err := store.Create(*userID, f.name, *interval)
		if err != nil {
			return fmt.Errorf("create %s: %w", f.name, err)
		}
		if _, err := store.Append(id, meta, values); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
		fmt.Printf("%s\t%d\t%d samples\n", f.name, id, n)
	}
	return nil
}
