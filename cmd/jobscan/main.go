// Package main provides the entry point for the jobscan CLI.
//
// jobscan is a resumable, rate-limited crawler for job listings. It
// discovers listing IDs through searches, extracts detail pages through a
// real browser at a human pace, and records everything in an append-only
// ledger so interrupted runs lose no work.
//
// Usage:
//
//	jobscan search "go developer" --region germany
//	jobscan scrape --limit 20
//	jobscan loop "go developer" --cycles 3
//
// See --help for all available options.
package main

// main is the entry point for jobscan.
func main() {
	Execute()
}
