// Package synth defines the VoiceSynthesizer capability and its provider
// variants.
//
// A synthesizer turns one piece of translated text into raw PCM for a given
// credential/model pair. Provider failures are mapped onto the services error
// taxonomy (quota, throttling, invalid credential, content rejection,
// transient) so that the synthesis driver can rotate without knowing which
// backend is in use. The provider is chosen once per run by New.
package synth
