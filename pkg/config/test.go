package config

func loadTestConfig(cfg *Config) {
	cfg.DatabaseFilePath = ":memory:"
	cfg.ServerHost = "127.0.0.1"
	// Use an ephemeral port so parallel test runs don't collide.
	cfg.ServerPort = 0
}
