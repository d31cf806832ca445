package feeds

import (
	"fmt"
	"io"

	yaml "gopkg.in/yaml.v2"

	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// SourceConfig points at the upstream content API that feeds are
// fetched from.
type SourceConfig struct {
	Endpoint string `yaml:"endpoint"`
	Debug    string `yaml:"debug"`
}

type NotifierConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// FeedConfig declares one keyed paginated feed: where it is fetched
// from, what entity type its results normalize to, and how its query
// keys derive from request parameters.
type FeedConfig struct {
	Name       string `yaml:"name"`
	Endpoint   string `yaml:"endpoint"`
	EntityType string `yaml:"entityType"`
	PageSize   int    `yaml:"pageSize"`

	// KeyedBy lists the request parameters that distinguish one
	// instance of this feed from another (a game id, a sitemap letter).
	// An empty list means the feed has a single shared slot.
	KeyedBy []string `yaml:"keyedBy"`

	// Append keeps already loaded items on a first page fetch instead
	// of replacing them. Feeds where staleness is unacceptable leave
	// this off.
	Append bool `yaml:"append"`

	// OnlyAuthored feeds resolve to an empty page without a network
	// call when no authenticated session is present.
	OnlyAuthored bool `yaml:"onlyAuthored"`

	// RemovesHidden feeds drop an item (and decrement their count)
	// when it is hidden from any other feed.
	RemovesHidden bool `yaml:"removesHidden"`

	// Thread feeds merge via the comment thread merger instead of the
	// standard replace/append success path.
	Thread bool `yaml:"thread"`
}

func (f FeedConfig) Type() types.EntityType {
	return types.EntityType(f.EntityType)
}

type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Notifier NotifierConfig `yaml:"notifier"`
	Feeds    []FeedConfig   `yaml:"feeds"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, err
	}

	for idx, feed := range cfg.Feeds {
		if feed.Name == "" {
			return nil, fmt.Errorf("feed %d has no name", idx)
		}
		if feed.Endpoint == "" {
			return nil, fmt.Errorf("feed %s has no endpoint", feed.Name)
		}
		if feed.EntityType == "" {
			return nil, fmt.Errorf("feed %s has no entity type", feed.Name)
		}
	}

	return cfg, nil
}
