// internal/workers/forms/submit-demande/config.go
package submitdemande

import (
	"time"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	Index   string
}

func LoadConfig(wcfg config.WorkerConfig, es config.ElasticsearchConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	index := es.DemandeIndex
	if index == "" {
		index = "demandes"
	}
	return &Config{
		Timeout: timeout,
		Index:   index,
	}
}
