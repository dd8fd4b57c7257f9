package process

// SettingType tells how a process setting is supplied.
type SettingType string

const (
	// SettingFeed is the id of an existing feed owned by the user.
	SettingFeed SettingType = "feed"
	// SettingNewFeed is the name of an output feed created with the process.
	// Once registered, the item carries the id of the created feed.
	SettingNewFeed SettingType = "newfeed"
	// SettingValue is a numeric constant.
	SettingValue SettingType = "value"
)

// EnginePHPFina is the storage engine id of fixed-interval feeds.
const EnginePHPFina = 5

// Setting describes one parameter of a process.
type Setting struct {
	Key    string      `json:"key"`
	Type   SettingType `json:"type"`
	Engine int         `json:"engine,omitempty"`
	Short  string      `json:"short"`
}

// Description is what a client needs to build a process item.
type Description struct {
	Name        string    `json:"name"`
	Group       string    `json:"group"`
	Description string    `json:"description"`
	Settings    []Setting `json:"settings"`
}

// Setting returns the setting with the given key.
func (d Description) Setting(key string) (Setting, bool) {
	for _, s := range d.Settings {
		if s.Key == key {
			return s, true
		}
	}
	return Setting{}, false
}

func feedSetting(key, short string) Setting {
	return Setting{Key: key, Type: SettingFeed, Engine: EnginePHPFina, Short: short}
}

func newFeedSetting(key, short string) Setting {
	return Setting{Key: key, Type: SettingNewFeed, Engine: EnginePHPFina, Short: short}
}

func valueSetting(key, short string) Setting {
	return Setting{Key: key, Type: SettingValue, Short: short}
}
