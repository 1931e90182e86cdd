// Package errors provides structured, actionable error messages for routewrap.
//
// Every failure the pipeline can produce carries a stable code (e.g. "E210")
// that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Error Categories
//
//   - classify: a file could not be mapped to a route
//   - transform: the link pass or a template failed for one file
//   - config: the project configuration is invalid
//   - artifact: uploading build artifacts failed
//   - cli: command line and build output problems
//   - protocol: malformed sidecar requests
//
// Per-file categories (classify, transform) are recovered by the fallback
// path in package wrap. Config errors abort the build before any file is
// processed.
//
// # Usage
//
//	err := errors.New("E210").
//	    WithLocation("pages/blog/[slug].tsx", 12, 7).
//	    WithDetail(msg.Text).
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
//	// Output:
//	// error[E210]: Link failed
//	//   --> pages/blog/[slug].tsx:12:7
//	//    |
//	// 11 | export async function getStaticProps() {
//	// 12 |   return { props: { ;
//	//    |       ^ Unexpected ";"
//	// 13 | }
//	//    |
//	//    = docs: https://routewrap.dev/docs/errors/E210
//
// WithSource takes the context lines from in-memory text instead of the file
// on disk, and WithNotes attaches secondary diagnostics.
package errors
