package game

import (
	"fmt"
	"math/rand"

	"gopkg.in/yaml.v3"
)

// NamePool hands out themed display names to players who join without
// choosing one. Loaded once at startup from the embedded YAML file.
type NamePool struct {
	hostName string
	names    []string
}

type namePoolFile struct {
	HostName string   `yaml:"hostName"`
	Names    []string `yaml:"names"`
}

// NewNamePool parses the embedded display-name file.
func NewNamePool(data []byte) (*NamePool, error) {
	var file namePoolFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse display-names file: %w", err)
	}
	if len(file.Names) == 0 {
		return nil, fmt.Errorf("display-names file contains no names")
	}
	if file.HostName == "" {
		file.HostName = "Host"
	}
	return &NamePool{hostName: file.HostName, names: file.Names}, nil
}

// HostName is the default display name for an unnamed host.
func (np *NamePool) HostName() string {
	return np.hostName
}

// Pick returns a random name not already used in the room. When the pool is
// exhausted it appends a numeric suffix instead of looping forever.
func (np *NamePool) Pick(room *Room) string {
	for attempt := 0; attempt < len(np.names)*3; attempt++ {
		name := np.names[rand.Intn(len(np.names))]
		if room == nil || !room.HasPlayerNamed(name) {
			return name
		}
	}
	base := np.names[rand.Intn(len(np.names))]
	for i := 2; ; i++ {
		name := fmt.Sprintf("%s %d", base, i)
		if room == nil || !room.HasPlayerNamed(name) {
			return name
		}
	}
}
