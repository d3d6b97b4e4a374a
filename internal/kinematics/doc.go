// Package kinematics owns the analysis core of a bimanual reach-grasp-trigger
// trial: speed estimation, zero-phase smoothing, hand role classification,
// event detection and parameter extraction.
//
// Key types: Sample, Trial, Role, EventSet, Bimanual, Unimanual, Analysis.
//
// Dependency rule: this package performs no I/O and never reads configuration
// files or process-wide state. Thresholds are passed in by value (see
// ThresholdsFromTuning). Every exported operation is safe to call concurrently
// for different trials; inputs are never mutated.
//
// Coordinates are centimetres in the lab frame: x lateral (mirrored between
// the two sensors), y depth, z height (up positive, see ToLabFrame). Speeds are
// metres per second.
package kinematics
