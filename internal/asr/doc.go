// Package asr integrates the asynchronous speech recognition service:
// submitting jobs, polling with bounded backoff, uploading audio the
// provider can fetch, and narrowly parsing the dynamic provider response
// into the word stream the utterance normalizer consumes.
package asr
