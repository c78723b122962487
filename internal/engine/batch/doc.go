// Package batch splits an item list into contiguous, fixed-size blocks and walks them in order.
//
// Blocks never overlap and, concatenated in index order, reproduce the input exactly:
//   - Block count is ceil(len(items) / blockSize); zero items yields zero blocks
//   - Every block holds blockSize items except possibly the last
//   - Processing is sequential and stops at the first callback error
//   - Progress tracking exposes counts, rate and ETA for diagnostic output
//
// The aligner corrupts its heap on large inputs, so the engine uses this package to
// bound how many items a single child process ever sees.
package batch
