// Package voice records one spoken value from a microphone and turns it into
// a transcript through an external speech-to-text service.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/bina-refinery/logbook/internal/observe"
)

// Microphone opens a 16-bit mono PCM stream.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream delivers PCM chunks until closed. Chunks is closed when the device
// stops.
type Stream interface {
	Chunks() <-chan []byte
	Close() error
}

// Transcriber turns a WAV utterance into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Config bounds one capture. Durations are measured in audio time.
type Config struct {
	SampleRate int
	// CalibrationDuration of ambient audio sets the speech energy threshold.
	CalibrationDuration time.Duration
	// Timeout is the longest wait for speech to start.
	Timeout time.Duration
	// PhraseLimit caps the recorded utterance.
	PhraseLimit time.Duration
	// PauseDuration of quiet after speech ends the utterance.
	PauseDuration time.Duration
	// EnergyRatio multiplies the ambient level to get the threshold.
	EnergyRatio float64
	// MinEnergy is the lowest threshold allowed, in sample units.
	MinEnergy float64
	// StallTimeout is the longest wall-clock gap between chunks before the
	// device is considered gone.
	StallTimeout time.Duration
}

// DefaultConfig returns 2 s calibration, 5 s timeout and 5 s phrase limit at
// 16 kHz.
func DefaultConfig() Config {
	return Config{
		SampleRate:          16000,
		CalibrationDuration: 2 * time.Second,
		Timeout:             5 * time.Second,
		PhraseLimit:         5 * time.Second,
		PauseDuration:       800 * time.Millisecond,
		EnergyRatio:         1.5,
		MinEnergy:           300,
		StallTimeout:        2 * time.Second,
	}
}

// Result is one successful capture.
type Result struct {
	Transcript  string        `json:"transcript"`
	Audio       time.Duration `json:"audioMs"`
	Transcriber string        `json:"transcriber"`
}

// Capturer runs calibrate, listen and transcribe against one microphone.
type Capturer struct {
	mic         Microphone
	transcriber Transcriber
	cfg         Config
	metrics     *observe.Metrics
	logger      *slog.Logger
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithMetrics records capture outcomes and latency.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Capturer) { c.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Capturer) { c.logger = l }
}

// NewCapturer creates a Capturer. mic may be nil when only uploaded audio is
// transcribed.
func NewCapturer(mic Microphone, transcriber Transcriber, cfg Config, opts ...Option) *Capturer {
	c := &Capturer{mic: mic, transcriber: transcriber, cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// HasMicrophone reports whether live capture is possible.
func (c *Capturer) HasMicrophone() bool { return c.mic != nil }

// Capture records one utterance and transcribes it. The device is released
// before Capture returns.
func (c *Capturer) Capture(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := c.capture(ctx)
	c.record(ctx, start, err)
	return res, err
}

// TranscribeWAV transcribes an utterance recorded elsewhere, such as in the
// operator's browser.
func (c *Capturer) TranscribeWAV(ctx context.Context, wav []byte) (*Result, error) {
	start := time.Now()
	res, err := c.transcribe(ctx, wav, 0)
	c.record(ctx, start, err)
	return res, err
}

func (c *Capturer) capture(ctx context.Context) (*Result, error) {
	if c.mic == nil {
		return nil, deviceErr(errors.New("no microphone configured"))
	}
	stream, err := c.mic.Open(ctx)
	if err != nil {
		return nil, deviceErr(err)
	}
	defer stream.Close()

	pcm, err := c.listen(ctx, stream)
	if err != nil {
		return nil, err
	}
	return c.transcribe(ctx, EncodeWAV(pcm, c.cfg.SampleRate, 1), c.audioDuration(len(pcm)))
}

func (c *Capturer) transcribe(ctx context.Context, wav []byte, audio time.Duration) (*Result, error) {
	text, err := c.transcriber.Transcribe(ctx, wav)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, serviceErr(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, noSpeechErr(errors.New("transcription service returned no text"))
	}
	return &Result{Transcript: text, Audio: audio, Transcriber: c.transcriber.Name()}, nil
}

// listen calibrates on ambient audio, then returns the PCM of the first
// utterance.
func (c *Capturer) listen(ctx context.Context, stream Stream) ([]byte, error) {
	var (
		calibBytes = c.bytesFor(c.cfg.CalibrationDuration)
		waitBytes  = c.bytesFor(c.cfg.Timeout)
		limitBytes = c.bytesFor(c.cfg.PhraseLimit)
		pauseBytes = c.bytesFor(c.cfg.PauseDuration)

		ambient   []byte
		threshold float64
		waited    int
		silence   int
		speaking  bool
		utterance []byte
		received  int
	)

	stall := time.NewTimer(c.cfg.StallTimeout)
	defer stall.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stall.C:
			return nil, deviceErr(fmt.Errorf("no audio from microphone for %s", c.cfg.StallTimeout))
		case chunk, ok := <-stream.Chunks():
			if !ok {
				switch {
				case speaking:
					return utterance, nil
				case received == 0:
					return nil, deviceErr(errors.New("microphone stream closed before any audio"))
				default:
					return nil, noSpeechErr(errors.New("microphone stream ended before speech"))
				}
			}
			if !stall.Stop() {
				select {
				case <-stall.C:
				default:
				}
			}
			stall.Reset(c.cfg.StallTimeout)
			received += len(chunk)

			if len(ambient) < calibBytes {
				ambient = append(ambient, chunk...)
				if len(ambient) >= calibBytes {
					threshold = math.Max(c.cfg.MinEnergy, computeRMS(ambient)*c.cfg.EnergyRatio)
					c.logger.Debug("ambient noise calibrated", "threshold", threshold)
				}
				continue
			}

			loud := computeRMS(chunk) >= threshold
			if !speaking {
				if !loud {
					waited += len(chunk)
					if waited >= waitBytes {
						return nil, noSpeechErr(fmt.Errorf("listening timed out after %s waiting for speech", c.cfg.Timeout))
					}
					continue
				}
				speaking = true
			}

			utterance = append(utterance, chunk...)
			if loud {
				silence = 0
			} else {
				silence += len(chunk)
			}
			if len(utterance) >= limitBytes {
				return utterance[:limitBytes], nil
			}
			if silence >= pauseBytes {
				return utterance, nil
			}
		}
	}
}

func (c *Capturer) bytesFor(d time.Duration) int {
	samples := int(d.Seconds() * float64(c.cfg.SampleRate))
	return samples * bitsPerSample / 8
}

func (c *Capturer) audioDuration(n int) time.Duration {
	samples := n / (bitsPerSample / 8)
	return time.Duration(samples) * time.Second / time.Duration(c.cfg.SampleRate)
}

func (c *Capturer) record(ctx context.Context, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "canceled"
		}
		c.logger.Warn("voice capture failed", "outcome", outcome, "error", err)
	}
	c.metrics.RecordVoiceCapture(ctx, outcome, time.Since(start))
}
