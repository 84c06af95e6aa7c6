// Package vm implements the garnet object model runtime.
//
// This package contains:
//   - Object headers with flags and lock-free instance variable tables
//   - Modules, classes, singleton classes and included-module wrappers
//   - Method tables, method search and the per-runtime method cache
//   - Call dispatch with visibility checks, method_missing and super
//   - The bootstrap of the core class hierarchy and built-in types
//
// A Runtime is safe for concurrent use. A Thread carries the frame stack for
// one goroutine and must not be shared.
package vm
