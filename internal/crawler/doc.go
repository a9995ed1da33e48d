// Package crawler implements the resumable star-harvest engine, including the
// page fetcher contract, rate budget policy, retry policy, progress
// checkpointing, and the orchestrator used by the starwatch CLI.
package crawler
