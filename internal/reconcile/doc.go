// Package reconcile fits generated speech into its chunk's time slot.
//
// The required speed factor is generated/target duration. Inside the allowed
// band the audio is time-stretched (pitch preserved) and then trimmed or
// padded to the exact slot length. Above the band the maximum speed-up is
// applied and the remaining overshoot is accepted and reported as drift.
// Below the band speech keeps its natural pace and trailing silence fills the
// slot.
package reconcile
