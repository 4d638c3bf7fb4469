package config

// Config is the embedded application configuration: browser flags, colly
// settings for the thumbnail fetcher, and the optional Elasticsearch sink.
// Per-run crawl parameters (query, limits, pacing) come from the CLI instead.
type Config struct {
	Elasticsearch struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Address  string `json:"address"`
		Index    string `json:"index"`
	} `json:"elasticsearch"`

	Chromedp struct {
		LifeTime             int    `json:"life_time"` // seconds, 0 = unbounded
		UserDataDir          string `json:"user_data_dir"`
		DisableBlinkFeatures string `json:"disable_blink_features"`
		Incognito            bool   `json:"incognito"`
		DisableDevShmUsage   bool   `json:"disable_dev_shm_usage"`
		NoSandbox            bool   `json:"no_sandbox"`
		UserAgent            string `json:"user_agent"`
	} `json:"chromedp"`

	Rod struct {
		LifeTime             int    `json:"life_time"`
		UserDataDir          string `json:"user_data_dir"`
		DisableBlinkFeatures string `json:"disable_blink_features"`
		Incognito            bool   `json:"incognito"`
		DisableDevShmUsage   bool   `json:"disable_dev_shm_usage"`
		NoSandbox            bool   `json:"no_sandbox"`
		UserAgent            string `json:"user_agent"`
		Leakless             bool   `json:"leakless"`
		Bin                  string `json:"bin"`
	} `json:"rod"`

	Colly struct {
		UserAgent   string `json:"user_agent"`
		Async       bool   `json:"async"`
		Parallelism int    `json:"parallelism"`
		Delay       int    `json:"delay"`        // seconds between requests
		RandomDelay int    `json:"random_delay"` // seconds of jitter
	} `json:"colly"`
}
