// Package slugmap persists the slug to identifier pairs of previously
// exported items.
//
// The map is a JSON file (default ~/.local/share/cointist/slug_map.json)
// holding one entry per slug. The Export Gate consults it when patching
// unresolved items and records every successful export back into it. Writes
// re-read the file under an advisory file lock so concurrent exporters merge
// rather than overwrite each other.
package slugmap
