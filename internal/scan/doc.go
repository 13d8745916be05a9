// Package scan measures the space occupied by a directory tree.
//
// Scan walks the tree post-order, one task per subdirectory, and folds every
// child's totals into its parent once all children have returned. Failures on
// single entries or directories are recorded in the result instead of aborting
// the walk. Inventory produces the flat file list alone, using fastwalk for
// parallel traversal.
package scan
