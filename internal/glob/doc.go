// Package glob implements the matcher engine used to select workspace
// directories and cache-relevant files.
//
// A set of patterns is compiled into a forest of matcher nodes, one node per
// path segment. Two node kinds exist: segment matchers (literal names and
// single-segment wildcards such as "*.ts", "?", "[ab]") and recursive
// wildcards ("**"). Evaluation walks a lazily listed directory tree; at each
// level the live matchers are asked, in reverse declaration order, to
// classify the entry (see MatchResult). A later negated pattern ("!**/*.d.ts")
// therefore short-circuits earlier positive patterns for the same entry.
//
// Pattern compilation (compile.go) is kept separate from evaluation
// (walk.go); matcher nodes are never mutated once compiled.
package glob
