package briefing

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"

	"sorot-backend/internal/shared/storage/object"
	"sorot-backend/internal/shared/telemetry"
	"sorot-backend/internal/synthesis"
)

type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, in *polly.SynthesizeSpeechInput, opts ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Polly speaks the briefing with an AWS Polly neural voice. Inline delivery
// returns a data URI; store delivery persists the mp3 and returns its key.
type Polly struct {
	client   pollyAPI
	voice    string
	delivery string
	store    object.ObjectStore
}

// NewPolly builds the Polly-backed generator. store may be nil for inline
// delivery.
func NewPolly(ctx context.Context, region, voice, delivery string, store object.ObjectStore) (*Polly, error) {
	if delivery == DeliveryStore && store == nil {
		return nil, fmt.Errorf("store delivery requires an object store")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Polly{
		client:   polly.NewFromConfig(cfg),
		voice:    voice,
		delivery: delivery,
		store:    store,
	}, nil
}

func (p *Polly) Generate(ctx context.Context, analysisID string, verdict synthesis.Verdict) (string, error) {
	ssml := BuildSSML(verdict)

	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(ssml),
		OutputFormat: pollytypes.OutputFormatMp3,
		VoiceId:      pollytypes.VoiceId(p.voice),
		Engine:       pollytypes.EngineNeural,
		TextType:     pollytypes.TextTypeSsml,
	})
	if err != nil {
		return "", fmt.Errorf("polly synthesize speech: %w", err)
	}
	if out.AudioStream == nil {
		return "", fmt.Errorf("no audio stream returned from polly")
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return "", fmt.Errorf("read polly audio stream: %w", err)
	}

	telemetry.Info("briefing.generated", map[string]any{"analysis_id": analysisID, "bytes": len(audio)})

	if p.delivery == DeliveryStore {
		key, _, _, err := p.store.Save(ctx, analysisID, "briefing.mp3", bytes.NewReader(audio))
		if err != nil {
			return "", fmt.Errorf("store audio briefing: %w", err)
		}
		return key, nil
	}

	return "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(audio), nil
}

var _ Generator = (*Polly)(nil)
