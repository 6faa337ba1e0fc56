// Package manifest records the observed input state of a task instance and
// decides whether it changed since the last successful run.
//
// A manifest is a sorted list of records, one per line:
//
//	file packages/a/src/index.ts<TAB><blake3 hex><TAB><mtime ns>
//	env NODE_ENV<TAB><blake3 hex>
//	upstream build::packages/b<TAB><digest of b's manifest>
//	command script<TAB><blake3 hex>
//
// File paths are relative to the project root and slash separated. Two
// builds over an unchanged tree produce byte-identical manifests. Only the
// hash column takes part in comparison; the mtime column lets a later build
// reuse a hash without reading the file again.
package manifest
