// Package build instruments a whole routes tree in one pass.
//
// This package handles:
//   - Route file discovery (routes tree plus middleware files)
//   - Concurrent transformation through the wrap pipeline
//   - Writing instrumented modules and their source maps
//   - Source map upload to an artifact store
//   - Build manifest generation
//
// # Usage
//
//	builder, err := build.New(cfg, transformer, build.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := builder.Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Built %d files in %s\n", len(result.Files), result.Duration)
//
// # Output Structure
//
//	.routewrap/
//	├── pages/
//	│   ├── index.jsx
//	│   ├── index.jsx.map
//	│   └── api/
//	│       ├── users.js
//	│       └── users.js.map
//	├── middleware.js
//	└── manifest.json
//
// Files that were excluded or fell back are copied under their original name.
package build
