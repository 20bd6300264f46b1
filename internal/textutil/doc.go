// Package textutil provides the text handling shared by registration and
// identity resolution: slug derivation and token-overlap title scoring.
//
// Tokenization lowercases text, splits on non-alphanumeric characters, and
// drops tokens shorter than 3 characters as well as common stopwords. Title
// similarity is the overlap ratio |A∩B| / min(|A|,|B|) of two token sets,
// judged by a MatchPolicy so thresholds can be tuned without touching the
// callers.
package textutil
