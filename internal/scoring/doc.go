// Package scoring computes the review signals of an extracted submission.
//
// Confidence is a deterministic score in [0,100] derived from the extractor's reported confidence and the
// defects found in the extracted data. Priority combines the score, the age of the submission and the
// supplier's history. Both are pure functions; the queue service decorates submissions with them.
package scoring
