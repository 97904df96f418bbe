// Package services defines shared utilities consumed by the pipeline stages
// and the external collaborators (synthesizers, translators, ffmpeg).
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, chunk indices, and
//     correlation identifiers for logging and tracing.
//   - The error taxonomy: sentinel markers, the Wrap helper, ProviderError for
//     collaborator failures that carry reset hints, and Classify which reduces
//     any error to the class that retry and rotation decisions key on.
//
// Provider adapters must map their failures onto these markers so the
// synthesis driver can recover locally without knowing which backend failed.
package services
