// Package checker runs the full request pipeline: normalize the language,
// prepare the code, validate it with the toolchain and, when it is valid,
// execute it in the sandbox.
//
// Client errors are rejected before any ephemeral resource is allocated.
// Once a scope is allocated it is released exactly once when Check returns,
// whatever the outcome.
package checker
