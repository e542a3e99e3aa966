// Package bundle defines the data model shared by the pipeline stages.
//
// ModuleRecord, ResourceEntry and BundleMetadata are created once per build
// and treated as immutable by every stage. The package also carries the
// error taxonomy (ErrConfiguration, ErrAssembly, ErrInternal) used to
// classify fatal failures, and the Report type collecting non-fatal
// warnings across stages.
package bundle
