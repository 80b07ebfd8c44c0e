package voice

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const chunkSizeBytes = 640 // 20ms @ 16kHz mono s16

// PulseMicrophone records from a PulseAudio (or PipeWire-pulse) source on
// the host running the service.
type PulseMicrophone struct {
	// Source is the Pulse source name; empty or "default" uses the server default.
	Source     string
	SampleRate int
}

// NewPulseMicrophone returns a microphone for source at sampleRate.
func NewPulseMicrophone(source string, sampleRate int) *PulseMicrophone {
	return &PulseMicrophone{Source: source, SampleRate: sampleRate}
}

// Open connects to the Pulse server and starts a mono s16 record stream.
func (m *PulseMicrophone) Open(ctx context.Context) (Stream, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("bina-logbook"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	var source *pulse.Source
	if m.Source == "" || m.Source == "default" {
		source, err = client.DefaultSource()
	} else {
		source, err = client.SourceByID(m.Source)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", m.Source, err)
	}

	s := &pulseStream{
		client: client,
		chunks: make(chan []byte, 256),
		stopCh: make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(s.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(m.SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("logbook reading"),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	s.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.stopCh:
		}
	}()

	return s, nil
}

type pulseStream struct {
	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu       sync.Mutex
	pending  []byte
	stopped  bool
	inflight sync.WaitGroup
}

func (s *pulseStream) Chunks() <-chan []byte { return s.chunks }

// Close stops recording and closes Chunks exactly once.
func (s *pulseStream) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	s.client.Close()

	s.inflight.Wait()
	close(s.chunks)
	return nil
}

// onPCM receives raw Pulse frames and emits chunkSizeBytes slices.
func (s *pulseStream) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as stopped so Close cannot Wait first.
	s.inflight.Add(1)
	s.pending = append(s.pending, buffer...)
	chunks := make([][]byte, 0, len(s.pending)/chunkSizeBytes)
	for len(s.pending) >= chunkSizeBytes {
		chunk := make([]byte, chunkSizeBytes)
		copy(chunk, s.pending[:chunkSizeBytes])
		s.pending = s.pending[chunkSizeBytes:]
		chunks = append(chunks, chunk)
	}
	s.mu.Unlock()
	defer s.inflight.Done()

	for _, chunk := range chunks {
		select {
		case <-s.stopCh:
			return 0, io.EOF
		case s.chunks <- chunk:
		}
	}
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
