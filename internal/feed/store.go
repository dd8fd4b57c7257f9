package feed

// Store is a feed engine. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the catalog entry of a feed, or ErrNotFound.
	Get(id int) (Info, error)
	// IDByName looks a feed up by owner and name.
	IDByName(userID int, name string) (int, bool)
	// Create registers an empty feed and returns its id. It fails with
	// ErrExists when the owner already has a feed with that name.
	Create(userID int, name string, interval int64) (int, error)
	// Open returns the samples of a feed. The caller closes the series.
	Open(id int) (*Series, error)
	// Append writes values after the last sample and stores the header
	// (interval, start time) given in m. The sample count is derived from the
	// data actually stored.
	Append(id int, m Meta, values []float64) (Meta, error)
	// Rewrite replaces all samples and the header of a feed.
	Rewrite(id int, m Meta, values []float64) (Meta, error)
}

// LastValue returns the last sample of a feed, or ok=false when it is empty.
func LastValue(s Store, id int) (v float64, ok bool, err error) {
	series, err := s.Open(id)
	if err != nil {
		return 0, false, err
	}
	defer series.Close()
	if series.Meta.NPoints == 0 {
		return 0, false, nil
	}
	v, err = series.At(series.Meta.NPoints - 1)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
