package analyses

import "errors"

var (
	ErrNotFound = errors.New("not found")
)

const (
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeSynthesis  = "SYNTHESIS_ERROR"
	ErrorCodeVisual     = "VISUAL_ANALYSIS_ERROR"
	ErrorCodeBriefing   = "BRIEFING_ERROR"
	ErrorCodeStorage    = "STORAGE_ERROR"
	ErrorCodeInternal   = "INTERNAL_ERROR"
)
