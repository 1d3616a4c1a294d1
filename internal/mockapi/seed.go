package mockapi

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Seed is the initial server state, loaded from YAML:
//
//	tokens:
//	  dev-token: u1
//	content:
//	  - id: p1
//	    likes: [u2, u3]
//	    comments:
//	      - id: c1
//	        author: u2
//	        text: first!
type Seed struct {
	Tokens  map[string]string `yaml:"tokens"` // bearer token → actor; empty accepts any token
	Content []SeedContent     `yaml:"content"`
}

// SeedContent is one content item in a seed file.
type SeedContent struct {
	ID       string        `yaml:"id"`
	Likes    []string      `yaml:"likes"`
	Comments []SeedComment `yaml:"comments"`
}

// SeedComment is one comment in a seed file.
type SeedComment struct {
	ID     string    `yaml:"id"`
	Author string    `yaml:"author"`
	Text   string    `yaml:"text"`
	At     time.Time `yaml:"at"`
}

// ParseSeed decodes a YAML seed.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, c := range s.Content {
		if c.ID == "" {
			return nil, fmt.Errorf("parse seed: content[%d] has no id", i)
		}
	}
	return &s, nil
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}
