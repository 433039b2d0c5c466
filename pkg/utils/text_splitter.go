package utils

import (
	"research-assistant-be/pkg/apperror"
)

// TextWindow is one slice of a larger text, with rune offsets [Start, End)
type TextWindow struct {
	Text  string
	Start int
	End   int
}

// SplitText splits a string into windows of at most 'chunkSize' characters.
// Consecutive windows share 'overlap' characters to preserve context at boundaries.
// This is a strict character-based splitter: it may cut mid-word or mid-sentence.
func SplitText(text string, chunkSize int, overlap int) ([]TextWindow, error) {
	if err := ValidateChunkConfig(chunkSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	totalLen := len(runes)
	if totalLen == 0 {
		return nil, nil
	}

	step := chunkSize - overlap
	windows := make([]TextWindow, 0, totalLen/step+1)

	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		windows = append(windows, TextWindow{
			Text:  string(runes[i:end]),
			Start: i,
			End:   end,
		})

		if end == totalLen {
			break
		}
	}

	return windows, nil
}

// ValidateChunkConfig enforces chunkSize > 0 and 0 <= overlap < chunkSize.
func ValidateChunkConfig(chunkSize int, overlap int) error {
	if chunkSize <= 0 {
		return apperror.Newf(apperror.KindInvalidChunkConfig, "chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return apperror.Newf(apperror.KindInvalidChunkConfig, "overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return apperror.Newf(apperror.KindInvalidChunkConfig, "overlap (%d) must be smaller than chunk size (%d)", overlap, chunkSize)
	}
	return nil
}
