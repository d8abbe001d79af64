package core

import "context"

// LLMProvider is the opaque text-completion capability grounding chat answers.
// GenerateWithImages is the multimodal variant used by the PDF OCR fallback.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
	GenerateWithImages(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// Transcriber turns audio/video bytes (or a media URL) into a transcript.
// Implementations submit a job and poll with a bounded retry ceiling; a stuck
// external job surfaces as ErrExternalService, never an unbounded hang.
type Transcriber interface {
	Transcribe(ctx context.Context, media []byte, filename string) (string, error)
	TranscribeURL(ctx context.Context, mediaURL string) (string, error)
}
