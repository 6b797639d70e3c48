// Package transcribe turns audio files into text. Backends are tried in the
// configured order: the hosted OpenAI API, a local speech model run as a
// subprocess, and a native whisper.cpp binary. When every backend is out of
// reach the engine produces a placeholder transcript so the episode still
// completes with a degraded note instead of failing.
package transcribe
