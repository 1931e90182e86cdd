// Package templates provides the wrapper templates applied to route files.
//
// There is one template per route role. Each one imports the user's module
// through a placeholder, wraps the exports it knows about with adapters from
// the runtime package, and re-exports everything else with a single
// wildcard statement:
//
//	import * as wrapee from '__WRAPPING_TARGET_FILE__';
//	...
//	export * from '__WRAPPING_TARGET_FILE__';
//
// # Template Variables
//
//	__ROUTE__                 - the canonical route, e.g. /blog/[slug]
//	__WRAPPING_TARGET_FILE__  - the synthetic name of the user's module
//
// # Usage
//
//	set, err := templates.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	code, err := set.Render(route.RolePage, "/blog/[slug]")
package templates
