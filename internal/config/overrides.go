package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Overrides are hand-maintained title remaps.
//
//	[titles]
//	"Final Fantasy VII" = ["Final Fantasy 7"]
//
//	[urls]
//	"Your Turn To Die" = "/game/your-turn-to-die/"
//
//	[skip]
//	titles = ["Untitled Prototype"]
type Overrides struct {
	Titles map[string][]string `toml:"titles"`
	URLs   map[string]string   `toml:"urls"`
	Skip   SkipTable           `toml:"skip"`
}

type SkipTable struct {
	Titles []string `toml:"titles"`
}

// LoadOverrides parses the TOML override file. A missing file yields empty tables.
func LoadOverrides(path string) (*Overrides, error) {
	out := &Overrides{
		Titles: map[string][]string{},
		URLs:   map[string]string{},
	}
	if path == "" {
		return out, nil
	}

	file, err := os.Open(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open overrides: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(out); err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", path, err)
	}
	if out.Titles == nil {
		out.Titles = map[string][]string{}
	}
	if out.URLs == nil {
		out.URLs = map[string]string{}
	}
	return out, nil
}

func (o *Overrides) Empty() bool {
	return o == nil || (len(o.Titles) == 0 && len(o.URLs) == 0 && len(o.Skip.Titles) == 0)
}
