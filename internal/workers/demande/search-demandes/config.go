// internal/workers/demande/search-demandes/config.go
package searchdemandes

import (
	"time"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
)

type Config struct {
	Timeout     time.Duration
	Index       string
	DefaultSize int
	MaxSize     int
}

func LoadConfig(wcfg config.WorkerConfig, es config.ElasticsearchConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	index := es.DemandeIndex
	if index == "" {
		index = "demandes"
	}
	return &Config{
		Timeout:     timeout,
		Index:       index,
		DefaultSize: 20,
		MaxSize:     100,
	}
}
