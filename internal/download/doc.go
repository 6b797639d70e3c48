// Package download acquires episode audio. Remote URLs are streamed into the
// temp directory with bounded retries for transient failures; local paths are
// validated in place. Every acquired file is checked against a minimum size
// and an audio content-type allowlist before it is handed to transcription.
package download
