// Package core provides the staged-import pipeline for roster data.
//
// This package holds all domain logic independent of any transport layer.
// It can be used by web handlers, CLI tools, or tests without modification.
//
// # Architecture
//
// A file moves through five stages owned by a [Pipeline]:
//
//   - Parser: detects CSV, JSON, or XLSX and produces ordered [RawRecord]s.
//     Spreadsheets are read by an ordered chain of [SpreadsheetStrategy].
//   - Normalizer: canonicalizes headers with [CanonicalColumn] and picks a
//     [RecordType] with [InferRecordType].
//   - Validation: per-row rules from the registry, then duplicate and
//     overlap detection across rows.
//   - Staging: [BuildPreview] assembles a [PreviewResult] for review.
//   - Executor: commits confirmed rows in sequential batches of
//     [DefaultBatchSize] to a [Store].
//
// Nothing reaches the store until the caller confirms:
//
//	p := core.NewPipeline(core.PipelineConfig{Store: store})
//	preview, err := p.Preview(ctx, file, p.Defaults())
//	...
//	res, err := p.Execute(ctx, core.Confirmation{Confirmed: true})
//
// # Record Registry
//
// Record types are registered at init time using [Register]. Each
// [RecordDefinition] lists field specs, the identity key used for duplicate
// detection, and an optional period for date-range checks.
//
// # Progress
//
// [ImportProgress] follows idle -> parsing -> validating -> importing ->
// complete or error. Reset and cancel return to idle. Changes are broadcast
// to subscribers via [Pipeline.Subscribe].
//
// # Error Handling
//
// [ParseError] aborts a run before validation. Row problems are data on
// [PreviewRow], never errors. [BackendError] stops an execute run and keeps
// committed batches. [RollbackError] reports a refused rollback.
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code prefix for support reference: FILE, VAL, IMP,
// RBK, SES, and REQ.
package core
