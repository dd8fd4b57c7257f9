package process

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/alexandrecuer/postprocess/internal/feed"
)

// ValidationError is a rejected setting. Msg is meant for the user.
type ValidationError struct {
	Key string
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrInvalidItem }

// Mode selects the checks applied to new feed settings.
type Mode int

const (
	// ModeCreate creates the feed named by every newfeed setting.
	ModeCreate Mode = iota
	// ModeUpdate expects newfeed settings to already hold feed ids.
	ModeUpdate
)

var invalidFeedName = regexp.MustCompile(`[^\w\s\-:]`)

// Validate checks params against desc for userID and returns the settings
// to register, with feed ids in place of new feed names. In ModeCreate the
// output feeds are only created once every setting has passed.
func Validate(desc Description, userID int, params map[string]string, feeds feed.Store, mode Mode) (map[string]string, error) {
	out := make(map[string]string, len(desc.Settings))
	var toCreate []string

	for _, s := range desc.Settings {
		v, ok := params[s.Key]
		if !ok {
			return nil, &ValidationError{Key: s.Key, Msg: "missing option " + s.Key}
		}

		switch {
		case s.Type == SettingFeed || (s.Type == SettingNewFeed && mode == ModeUpdate):
			id, err := Item{Params: params}.FeedID(s.Key)
			if err != nil {
				return nil, err
			}
			info, err := feeds.Get(id)
			if err != nil {
				return nil, &ValidationError{Key: s.Key, Msg: "feed does not exist"}
			}
			if info.UserID != userID {
				return nil, &ValidationError{Key: s.Key, Msg: "invalid feed"}
			}
			out[s.Key] = strconv.Itoa(id)

		case s.Type == SettingNewFeed:
			if v == "" {
				return nil, &ValidationError{Key: s.Key, Msg: "new feed name is blank"}
			}
			if invalidFeedName.MatchString(v) {
				return nil, &ValidationError{Key: s.Key, Msg: "new feed name contains invalid characters"}
			}
			if _, exists := feeds.IDByName(userID, v); exists {
				return nil, &ValidationError{Key: s.Key, Msg: "feed already exists with name " + v}
			}
			out[s.Key] = v
			toCreate = append(toCreate, s.Key)

		case s.Type == SettingValue:
			if _, err := (Item{Params: params}).Value(s.Key); err != nil {
				return nil, err
			}
			out[s.Key] = strings.TrimSpace(v)
		}
	}

	for _, key := range toCreate {
		id, err := feeds.Create(userID, out[key], feed.DefaultInterval)
		if err != nil {
			if errors.Is(err, feed.ErrExists) {
				return nil, &ValidationError{Key: key, Msg: "feed already exists with name " + out[key]}
			}
			return nil, &ValidationError{Key: key, Msg: "feed could not be created"}
		}
		out[key] = strconv.Itoa(id)
	}
	return out, nil
}
