package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// 语音链路统一采样格式：16kHz / 16bit / 单声道 PCM。
const (
	SampleRate    = 16000
	BitsPerSample = 16
	NumChannels   = 1

	headerSize = 44
)

// BytesPerSecond 该格式下一秒音频占用的字节数。
const BytesPerSecond = SampleRate * NumChannels * BitsPerSample / 8

// FormatError 音频格式不符合要求。
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported audio format: %s", e.Reason)
}

// WAVHeader 标准 44 字节 RIFF/WAVE 头。
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16 // 1 = PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// ExtractPCM 校验 WAV 数据并取出裸 PCM。
// 只接受 16kHz / 16bit / 单声道 PCM，其他格式一律报 FormatError。
func ExtractPCM(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, &FormatError{Reason: "file too short for wav header"}
	}

	var h WAVHeader
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &h); err != nil {
		return nil, &FormatError{Reason: "failed to parse wav header"}
	}

	if string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE" {
		return nil, &FormatError{Reason: "not a RIFF/WAVE file"}
	}
	if string(h.Subchunk1ID[:]) != "fmt " || string(h.Subchunk2ID[:]) != "data" {
		return nil, &FormatError{Reason: "unexpected chunk layout"}
	}
	if h.AudioFormat != 1 {
		return nil, &FormatError{Reason: fmt.Sprintf("audio format %d, want PCM", h.AudioFormat)}
	}
	if h.NumChannels != NumChannels {
		return nil, &FormatError{Reason: fmt.Sprintf("%d channels, want mono", h.NumChannels)}
	}
	if h.SampleRate != SampleRate {
		return nil, &FormatError{Reason: fmt.Sprintf("sample rate %d, want %d", h.SampleRate, SampleRate)}
	}
	if h.BitsPerSample != BitsPerSample {
		return nil, &FormatError{Reason: fmt.Sprintf("%d bits per sample, want %d", h.BitsPerSample, BitsPerSample)}
	}

	pcm := data[headerSize:]
	if int(h.Subchunk2Size) < len(pcm) {
		pcm = pcm[:h.Subchunk2Size]
	}
	if len(pcm) == 0 {
		return nil, &FormatError{Reason: "empty data chunk"}
	}
	return pcm, nil
}

// PackPCM 给裸 PCM 套上标准 WAV 头。
func PackPCM(pcm []byte) []byte {
	h := WAVHeader{
		ChunkSize:     uint32(36 + len(pcm)),
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   NumChannels,
		SampleRate:    SampleRate,
		ByteRate:      BytesPerSecond,
		BlockAlign:    NumChannels * BitsPerSample / 8,
		BitsPerSample: BitsPerSample,
		Subchunk2Size: uint32(len(pcm)),
	}
	copy(h.ChunkID[:], "RIFF")
	copy(h.Format[:], "WAVE")
	copy(h.Subchunk1ID[:], "fmt ")
	copy(h.Subchunk2ID[:], "data")

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(pcm)))
	_ = binary.Write(buf, binary.LittleEndian, &h)
	buf.Write(pcm)
	return buf.Bytes()
}

// Silence 生成指定时长的静音 PCM。
func Silence(seconds float64) []byte {
	if seconds <= 0 {
		return nil
	}
	n := int(seconds * BytesPerSecond)
	n -= n % (NumChannels * BitsPerSample / 8)
	return make([]byte, n)
}
