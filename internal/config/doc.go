// Package config provides configuration parsing for routewrap projects.
//
// The configuration is stored in routewrap.json (or routewrap.yaml) at the
// project root. This package handles loading, saving, and validating it.
//
// # Configuration File Structure
//
//	{
//	  "paths": {
//	    "routes": "pages"
//	  },
//	  "pageExtensions": ["tsx", "ts", "jsx", "js"],
//	  "exclude": ["/admin*", "re:^/api/internal/"],
//	  "build": {
//	    "output": ".routewrap",
//	    "concurrency": 8,
//	    "sourceMaps": true
//	  },
//	  "templates": {
//	    "dir": "./wrappers"
//	  },
//	  "server": {
//	    "addr": "localhost:7300"
//	  },
//	  "artifacts": {
//	    "enabled": true,
//	    "bucket": "my-sourcemaps",
//	    "region": "eu-west-1"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
