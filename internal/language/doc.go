// Package language maps the language codes found in configuration (ISO 639-1,
// ISO 639-2 or plain English words) onto the forms container metadata needs.
//
// The muxer tags the dubbed audio stream with the ISO 639-2 code and a
// display title so players list the dub under the right language.
package language
