// Package hexazine is the account state engine behind a self-hosted
// account/project service: one versioned document aggregate holding
// accounts, sessions, projects, and the email change ledger, persisted as a
// whole-document JSON file.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]: every mutating operation holds an
// exclusive lock across its full read-modify-persist span, so interleaved
// requests can never lose an update between their read and their write.
//
// # Architecture boundaries
//
// hexazine is the state engine only. It exposes [Engine], [Builder],
// [Config], and value types (EmailStatus, AccountInfo, MetricsSnapshot).
// HTTP routing, static serving, the dashboard, and outbound email delivery
// live outside this module; the engine sees them through the [Notifier]
// capability and nothing else. Cohesive subsystems live in subpackages:
// the document model, migration pipeline, and file store in store; the
// versioned password hashing registry in credential.
//
// # What this package must NOT do
//
//   - Touch the backing file outside store — all durability goes through
//     one whole-document persist.
//   - Send email. Notify calls go through the injected [Notifier]; a failed
//     notification aborts the requesting operation before it mutates state.
//   - Write the aggregate back after a version-skew or validation failure
//     at load; [Builder.Build] fails instead and the process should stop.
package hexazine
