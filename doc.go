// Package orchestra implements the delegation and concurrency core of a
// hierarchical autonomous-agent orchestration runtime.
//
// A root conversational agent decomposes a user mission, spawns delegate
// sub-agents on demand via the delegation package, runs them concurrently
// under bounded resources, recovers from transient failures, and
// re-aggregates their results into a single answer. The apprun package
// ties the pieces together into a process-scope runtime.
package orchestra
