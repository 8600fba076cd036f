// internal/workers/demande/check-eligibility/config.go
package checkeligibility

import (
	"time"

	"github.com/ellaouzi/fos-app-sub002/internal/common/config"
)

type Config struct {
	Timeout     time.Duration
	CacheTTL    time.Duration
	CachePrefix string
}

func LoadConfig(wcfg config.WorkerConfig, forms config.FormsConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := forms.CacheTTLDuration()
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Config{
		Timeout:     timeout,
		CacheTTL:    ttl,
		CachePrefix: "forms:prestation:",
	}
}
