// Package route maps route files to canonical routes and roles, and decides
// which routes are excluded from instrumentation.
//
// A file's canonical route is derived from its location under the routes
// directory:
//
//	pages/index.ts        → /
//	pages/blog/index.ts   → /blog
//	pages/blog/[slug].tsx → /blog/[slug]
//	pages/api/users.ts    → /api/users
//
// Roles are checked in order: API (route under /api), middleware
// (middleware.ts or middleware.js next to the routes directory), page.
//
// # Exclusion Rules
//
//	"/health"           exact match
//	"/admin*"           /admin and everything below it
//	"/docs/**/draft"    doublestar glob
//	"re:^/internal-"    regular expression, unanchored
package route
