// Command feedcsv copies a PHPFina feed to or from CSV.
//
// Usage:
//
//	go run ./cmd/feedcsv -dir /var/lib/phpfina -export 12 > tint.csv
//	go run ./cmd/feedcsv -dir /var/lib/phpfina -import tint.csv -name tint -userid 1
//
// CSV files have a time,value header; missing samples are written as NaN.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/alexandrecuer/postprocess/internal/adapter/phpfina"
	"github.com/alexandrecuer/postprocess/internal/feed"
)

func main() {
	dir := flag.String("dir", "", "PHPFina feed directory")
	exportID := flag.Int("export", 0, "feed id to write to stdout")
	importPath := flag.String("import", "", "CSV file to load into a new feed")
	name := flag.String("name", "", "name of the imported feed")
	userID := flag.Int("userid", 1, "owner of the imported feed")
	interval := flag.Int64("interval", 0, "interval of the imported feed, inferred when 0")
	flag.Parse()

	if *dir == "" || (*exportID == 0) == (*importPath == "") {
		flag.Usage()
		os.Exit(2)
	}

	logger := sharedobs.NewLogger("warn", "text")
	store, err := phpfina.Open(*dir, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *exportID != 0 {
		err = exportFeed(store, *exportID)
	} else {
		err = importFeed(store, logger, *importPath, *name, *userID, *interval)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func exportFeed(store feed.Store, id int) error {
	series, err := store.Open(id)
	if err != nil {
		return err
	}
	defer series.Close()
	return feed.ExportCSV(os.Stdout, series)
}

func importFeed(store feed.Store, logger *slog.Logger, path, name string, userID int, interval int64) error {
	if name == "" {
		return fmt.Errorf("-name is required with -import")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	meta, values, err := feed.ImportCSV(f, interval)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	id, err := store.Create(userID, name, meta.Interval)
	if err != nil {
		return err
	}
	if _, err := store.Append(id, meta, values); err != nil {
		return fmt.Errorf("write feed %d: %w", id, err)
	}
	logger.Info("feed imported", "id", id, "name", name, "npoints", len(values))
	fmt.Println(id)
	return nil
}
