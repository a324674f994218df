package culturedb

// ActivityKey identifies one row of the wide activity view. Every narrow
// record carries the same three components, and two records consolidate into
// the same wide row iff all three are equal.
type ActivityKey struct {
	// Experiment is the name of the owning experiment.
	Experiment string
	// Unit is the identifier of the culturing unit that produced the record.
	Unit string
	// Timestamp is the observation time as an ISO-8601 UTC string with
	// sub-second precision (e.g., "2026-08-31T14:02:07.123456Z"). It is
	// treated as an opaque, case-sensitive string: no parsing, no rounding,
	// no time-window bucketing.
	Timestamp string
}

// NewActivityKey creates an ActivityKey from its three components.
func NewActivityKey(experiment, unit, timestamp string) ActivityKey {
	return ActivityKey{Experiment: experiment, Unit: unit, Timestamp: timestamp}
}

// Validate reports whether the key is complete. All three components are
// required; an empty component means the record cannot be consolidated.
func (k ActivityKey) Validate() error {
	if k.Experiment == "" || k.Unit == "" || k.Timestamp == "" {
		return ErrMissingKey
	}
	return nil
}

// Equals checks exact tuple equality. Keys match bit-for-bit or not at all.
func (k ActivityKey) Equals(other ActivityKey) bool {
	return k == other
}

// String returns a canonical representation for map keys and log lines.
// The format is "experiment|unit|timestamp".
func (k ActivityKey) String() string {
	return k.Experiment + "|" + k.Unit + "|" + k.Timestamp
}
