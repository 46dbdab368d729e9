package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstranscribe "github.com/aws/aws-sdk-go-v2/service/transcribe"
	transcribetypes "github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/google/uuid"

	"sorot-backend/internal/shared/telemetry"
)

var (
	// ErrTimeout means the job did not settle within the polling window.
	ErrTimeout = errors.New("transcription job timed out")
	// ErrCredentials means AWS credentials are missing or invalid.
	ErrCredentials = errors.New("aws credentials not configured properly")
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 120
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type transcribeAPI interface {
	StartTranscriptionJob(ctx context.Context, in *awstranscribe.StartTranscriptionJobInput, opts ...func(*awstranscribe.Options)) (*awstranscribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, in *awstranscribe.GetTranscriptionJobInput, opts ...func(*awstranscribe.Options)) (*awstranscribe.GetTranscriptionJobOutput, error)
	DeleteTranscriptionJob(ctx context.Context, in *awstranscribe.DeleteTranscriptionJobInput, opts ...func(*awstranscribe.Options)) (*awstranscribe.DeleteTranscriptionJobOutput, error)
}

// AWSTranscriber runs transcription as an AWS Transcribe job with the audio
// staged in S3.
type AWSTranscriber struct {
	s3         s3API
	transcribe transcribeAPI
	bucket     string

	pollInterval time.Duration
	maxAttempts  int
}

// NewAWS constructs a Transcribe-backed transcriber for the given region and
// staging bucket.
func NewAWS(ctx context.Context, region, bucket string) (*AWSTranscriber, error) {
	if bucket == "" {
		return nil, fmt.Errorf("transcribe staging bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &AWSTranscriber{
		s3:           s3.NewFromConfig(cfg),
		transcribe:   awstranscribe.NewFromConfig(cfg),
		bucket:       bucket,
		pollInterval: defaultPollInterval,
		maxAttempts:  defaultMaxAttempts,
	}, nil
}

// Transcribe uploads the audio file to S3, runs a transcription job against
// it, and returns the transcript text. The staged S3 object and the job
// itself are removed on every exit path. The caller owns the local file.
func (t *AWSTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	jobName := fmt.Sprintf("sorot-transcribe-%s", uuid.NewString())
	inputKey := path.Join("transcribe-input", jobName, filepath.Base(audioPath))
	outputKey := path.Join("transcribe-output", jobName) + "/"

	defer t.cleanup(jobName, inputKey)

	audio, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer audio.Close()

	_, err = t.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(inputKey),
		Body:        audio,
		ContentType: aws.String("audio/m4a"),
	})
	if err != nil {
		return "", classifyAWSError(fmt.Errorf("stage audio in s3: %w", err))
	}

	_, err = t.transcribe.StartTranscriptionJob(ctx, &awstranscribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		LanguageCode:         transcribetypes.LanguageCodeEnUs,
		Media: &transcribetypes.Media{
			MediaFileUri: aws.String(fmt.Sprintf("s3://%s/%s", t.bucket, inputKey)),
		},
		OutputBucketName: aws.String(t.bucket),
		OutputKey:        aws.String(outputKey),
	})
	if err != nil {
		return "", classifyAWSError(fmt.Errorf("start transcription job: %w", err))
	}

	telemetry.Info("transcribe.job_started", map[string]any{"job": jobName})

	if err := t.waitForJob(ctx, jobName); err != nil {
		return "", err
	}

	transcript, err := t.fetchTranscript(ctx, outputKey+jobName+".json")
	if err != nil {
		return "", err
	}

	telemetry.Info("transcribe.completed", map[string]any{"job": jobName, "chars": len(transcript)})
	return transcript, nil
}

func (t *AWSTranscriber) waitForJob(ctx context.Context, jobName string) error {
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.pollInterval):
		}

		out, err := t.transcribe.GetTranscriptionJob(ctx, &awstranscribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			return classifyAWSError(fmt.Errorf("poll transcription job: %w", err))
		}

		job := out.TranscriptionJob
		if job == nil {
			continue
		}
		switch job.TranscriptionJobStatus {
		case transcribetypes.TranscriptionJobStatusCompleted:
			return nil
		case transcribetypes.TranscriptionJobStatusFailed:
			reason := ""
			if job.FailureReason != nil {
				reason = *job.FailureReason
			}
			return fmt.Errorf("transcription job failed: %s", reason)
		}
	}
	return ErrTimeout
}

// transcriptDocument is the shape of the JSON Transcribe writes to the
// output bucket.
type transcriptDocument struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

func (t *AWSTranscriber) fetchTranscript(ctx context.Context, key string) (string, error) {
	out, err := t.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", classifyAWSError(fmt.Errorf("fetch transcript output: %w", err))
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read transcript output: %w", err)
	}

	var doc transcriptDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decode transcript output: %w", err)
	}
	if len(doc.Results.Transcripts) == 0 {
		return "", fmt.Errorf("transcript output contains no transcripts")
	}
	return strings.TrimSpace(doc.Results.Transcripts[0].Transcript), nil
}

// cleanup removes the transcription job and staged audio on a detached
// context so it still runs when the caller's context is already cancelled.
func (t *AWSTranscriber) cleanup(jobName, inputKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if _, err := t.transcribe.DeleteTranscriptionJob(ctx, &awstranscribe.DeleteTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
	}); err != nil {
		telemetry.Warn("transcribe.job_cleanup", map[string]any{"job": jobName, "error": err.Error()})
	}

	if _, err := t.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(inputKey),
	}); err != nil {
		telemetry.Warn("transcribe.input_cleanup", map[string]any{"key": inputKey, "error": err.Error()})
	}
}

func classifyAWSError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "credential") || strings.Contains(msg, "no ec2 imds role") {
		return fmt.Errorf("%w: %v", ErrCredentials, err)
	}
	return err
}

var _ Transcriber = (*AWSTranscriber)(nil)
