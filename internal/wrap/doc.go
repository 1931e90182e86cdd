// Package wrap is the per-file instrumentation pipeline.
//
// A Transformer takes one source file and returns either the instrumented
// module or, when anything goes wrong, the file exactly as it was given:
//
//	classify ─▶ exclude? ─▶ render template ─▶ link ─▶ Output
//	    │           │              │              │
//	    └───────────┴──── error ───┴──────────────┴─▶ original input + one warning
//
// Excluded routes are returned untouched without logging. Transform never
// returns an error; the Output carries the status and, for fallbacks, the
// cause.
package wrap
