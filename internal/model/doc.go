// Package model defines the core data structures used throughout jobscan.
//
// This package contains the following main types:
//   - DiscoveryRecord: One observation of a job listing ID
//   - CompletionRecord: One finished detail-extraction attempt
//   - Job: The record extracted from a job detail page
//   - Stats: Aggregate counts for progress reporting
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, ledger, index, report) need to use
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for the ledger segments,
// stored job artifacts and report output.
package model
