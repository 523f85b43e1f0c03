// Package analysis aggregates review outcomes of one extraction template into a health classification
// and a ranked list of improvement proposals.
//
// The Engine is pure: it works on the counts, feedback and extraction failures handed to it and never
// touches the store. Apply turns an accepted proposal into a new template configuration.
package analysis
