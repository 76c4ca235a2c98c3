// Package prompt renders the instruction text sent to the completion
// service for one persona in one situation.
//
// Templates are data: an embedded YAML document maps a locale and a
// situation to a text/template. Every rendered prompt names the persona,
// carries its traits and an explicit character ceiling. Locales without
// templates fall back to English.
package prompt
