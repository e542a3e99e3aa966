// Package receipt implements persistence for build receipts.
//
// The FileRepository stores and loads the receipt as YAML in the work
// tree and exposes a Repository interface that the builder depends on.
package receipt
