// Package link merges a rendered wrapper template and a user's route module
// into one ES module.
//
// The wrapper re-exports everything from the user's module with a single
// wildcard statement. Host build systems reject wildcard re-exports they
// cannot analyse, so Link runs both modules through an in-process esbuild
// pass that expands the wildcard into individually named exports:
//
//	wrapper ──export *──▶ target ──▶ (everything else is external)
//
// Only the two virtual modules are resolved. Every other import specifier is
// marked external and emitted exactly as written, including relative paths
// such as "../../utils/helper".
//
// CommonJS route modules are normalized first: their module.exports
// properties are discovered with tree-sitter and exposed as named ES exports.
// The user's source map, or an identity map when none is given, is attached
// to the target so the emitted map points back at the original file.
package link
