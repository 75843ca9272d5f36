// Package language maps free-form language identifiers onto the closed set of
// canonical codes the checker knows how to validate and run.
package language
