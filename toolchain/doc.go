// Package toolchain validates prepared units with the host's compilers and
// parsers.
//
// Each language is checked without running user code: python compiles to
// bytecode, javac compiles into the scope, gcc and g++ run in -fsyntax-only
// mode and JavaScript is parsed by a small node helper. C++ is checked by a
// dialect search that walks the configured standards from newest to oldest.
//
// Compile failures are results, not errors. Validate only returns an error for
// internal faults such as a missing toolchain binary.
package toolchain
