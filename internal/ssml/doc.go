// Package ssml deterministically splits article text into speech-synthesis
// payloads bounded by the provider's request-size limit.
//
// The segmenter packs paragraphs greedily into <speak> documents, measuring
// the escaped UTF-8 byte length of the exact markup that will be transmitted.
// The article title rides in the first payload only. Paragraphs too large for
// a payload of their own are re-split into word chunks under a separate
// character budget; a chunk that still cannot fit is a configuration error
// and aborts loudly rather than emit a request the provider will reject.
package ssml
