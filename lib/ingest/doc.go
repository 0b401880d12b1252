// Package ingest implements the deduplicating signal counter behind
// "tally ingest".
//
// Every signal id that was not seen within the suppression window increments
// its counter in a persistent map and is recorded in the run's uniqueness
// set. Repetitions inside the window only increment the suppressed count. At
// the end of a run the uniqueness set is stored as a plain list under
// ReportKey in a second map.
package ingest
