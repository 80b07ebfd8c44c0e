package voice

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := tone(1000)
	wav := EncodeWAV(pcm, 16000, 1)

	require.Len(t, wav, 44+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]), "mono")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]), "byte rate")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, pcm, wav[44:])
}

func TestCheckWAV(t *testing.T) {
	assert.NoError(t, CheckWAV(EncodeWAV(nil, 16000, 1)))
	assert.ErrorIs(t, CheckWAV([]byte("ID3\x03 not a wav file")), ErrNotWAV)
	assert.ErrorIs(t, CheckWAV(nil), ErrNotWAV)
}

func TestComputeRMS(t *testing.T) {
	assert.Equal(t, 0.0, computeRMS(nil))
	assert.InDelta(t, 1000.0, computeRMS(tone(1000)), 1e-9)
	assert.InDelta(t, 1000.0, computeRMS(tone(-1000)), 1e-9)
}
