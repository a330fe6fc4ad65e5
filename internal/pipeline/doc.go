// Package pipeline runs the face-overlay processing chain for a single
// uploaded clip: normalise the container with ffmpeg, hand the result to the
// external overlay processor, then re-encode once more for browser playback.
//
// Every stage is an external subprocess reached through the Runner
// abstraction so the orchestration remains testable without ffmpeg or the
// processor installed. The pipeline owns the ephemeral artifacts it creates
// (and the input it is handed) and guarantees they are removed before a call
// returns, on success and on every failure path.
package pipeline
