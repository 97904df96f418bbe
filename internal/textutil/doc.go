// Package textutil provides text normalization shared by transcript parsing,
// chunking and log/report rendering.
//
// Text is normalized to Unicode NFC with whitespace runs collapsed to a single
// space, so that chunk text is always the space-joined concatenation of its
// segments. Sentence-terminal detection understands Latin and CJK marks and
// ignores trailing closing quotes and brackets.
package textutil
