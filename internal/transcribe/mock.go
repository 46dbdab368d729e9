package transcribe

import "context"

// Static returns a fixed transcript regardless of input. Used in mock mode
// and in tests.
type Static struct {
	Transcript string
	Err        error
}

func (s *Static) Transcribe(_ context.Context, _ string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Transcript, nil
}

var _ Transcriber = (*Static)(nil)
