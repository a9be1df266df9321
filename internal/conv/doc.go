// Package conv converts between the integer widths used for element
// counts, byte spans and file offsets, failing instead of wrapping.
//
// Element counts are uint64, mapped regions are addressed with int and
// file or blob offsets with int64. Every crossing between those domains
// goes through a checked helper here.
package conv
