// Package similarity implements the exact vector search used for retrieval
// and confidence estimation.
//
// Everything here is a pure function over in-memory vectors with no I/O.
// Search is brute force: every candidate is scored, which is adequate for a
// single bot's chunks.
package similarity
