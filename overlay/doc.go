// Package overlay embeds invisible text layers into scanned PDF
// documents.
//
// The input is a parsed document plus per-page OCR output: recognized
// words with pixel-space bounding boxes and the raster dimensions they
// were measured on. For each page the engine scales the boxes into PDF
// points, flips them into bottom-up coordinates, sizes glyphs to fill
// each box, and appends one render-mode-3 content stream to the page.
// The page's existing content is never modified, so the visual result
// is untouched while text search, selection, and copy start working.
//
// Processing is deterministic: the same document and the same words
// produce byte-identical output.
package overlay
