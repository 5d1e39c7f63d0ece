// Package config provides configuration parsing for livesync.
//
// The configuration is stored in livesync.json, by default in the working
// directory. Every field is optional; missing values take the defaults
// returned by New. Environment variables override the file and command
// line flags override both.
//
// # Configuration File Structure
//
//	{
//	  "feed": {
//	    "url": "ws://localhost:8080/api/v1/ws",
//	    "backoff": {"initial": "1s", "max": "30s"}
//	  },
//	  "console": {
//	    "url": "ws://localhost:8080/api/v1/rcon",
//	    "credentialParam": "key",
//	    "credentialEnv": "LIVESYNC_API_KEY"
//	  },
//	  "api": {
//	    "url": "http://localhost:8080/api/v1",
//	    "timeout": "10s"
//	  },
//	  "transport": {
//	    "handshakeTimeout": "10s",
//	    "writeTimeout": "10s",
//	    "readTimeout": "60s",
//	    "pingInterval": "30s",
//	    "maxMessageSize": 65536
//	  },
//	  "metrics": {"enabled": true, "address": ":9464", "namespace": "livesync"},
//	  "log": {"level": "info", "format": "text"}
//	}
//
// # Environment
//
//	LIVESYNC_FEED_URL      feed.url
//	LIVESYNC_CONSOLE_URL   console.url
//	LIVESYNC_API_URL       api.url
//	LIVESYNC_LOG_LEVEL     log.level
//
// The console credential itself is never stored in the file; it is read
// from the variable named by console.credentialEnv (LIVESYNC_API_KEY).
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.ApplyEnv(os.LookupEnv)
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
