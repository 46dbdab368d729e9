// Package transcribe turns trailer audio into text via AWS Transcribe,
// staging audio through S3 and polling the job until it settles.
package transcribe

import "context"

// Fallback is substituted for the transcript when audio download or
// transcription fails. The pipeline keeps going with this value.
const Fallback = "Audio transcription unavailable. Using visual analysis only."

// Transcriber converts a local audio file into transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
