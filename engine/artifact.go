package engine

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/wippyai/wasm-bench/errors"
)

// engineVersion identifies the embedded engine build. It must change whenever
// the wasmtime-go dependency is bumped, since serialized code is only valid
// for the exact engine version that produced it.
const engineVersion = "wasmtime-go/v14.0.0"

const (
	artifactVersion uint16 = 1
	headerSize             = 4 + 2 + sha256.Size
)

var artifactMagic = [4]byte{'W', 'B', 'A', 'R'}

// Fingerprint identifies the engine configuration an artifact was built for.
type Fingerprint [sha256.Size]byte

func (f Fingerprint) String() string {
	return fmt.Sprintf("%x", f[:8])
}

func fingerprintOf(cfg Config) Fingerprint {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00fuel=%t\x00epoch=%t\x00opt=%s\x00debug=%t",
		engineVersion, canonicalTriple(cfg.Target), cfg.Fuel, cfg.Epoch, cfg.OptLevel, cfg.DebugInfo)
	var f Fingerprint
	copy(f[:], h.Sum(nil))
	return f
}

// Header is the envelope in front of every artifact produced by Compile.
type Header struct {
	Version     uint16
	Fingerprint Fingerprint
}

func sealArtifact(fp Fingerprint, payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	copy(out, artifactMagic[:])
	binary.LittleEndian.PutUint16(out[4:], artifactVersion)
	copy(out[6:headerSize], fp[:])
	copy(out[headerSize:], payload)
	return out
}

// ReadHeader parses the envelope of an artifact without touching its payload.
func ReadHeader(artifact []byte) (Header, error) {
	if len(artifact) < headerSize {
		return Header{}, errors.Incompatible(
			fmt.Sprintf("artifact too short: %d bytes", len(artifact)), nil)
	}
	if !bytes.Equal(artifact[:4], artifactMagic[:]) {
		return Header{}, errors.Incompatible("not a compiled artifact", nil)
	}
	var h Header
	h.Version = binary.LittleEndian.Uint16(artifact[4:])
	copy(h.Fingerprint[:], artifact[6:headerSize])
	return h, nil
}

// openArtifact returns the payload after checking the envelope.
// With trust set only the envelope's framing is checked.
func openArtifact(artifact []byte, want Fingerprint, trust bool) ([]byte, error) {
	h, err := ReadHeader(artifact)
	if err != nil {
		return nil, err
	}
	if trust {
		return artifact[headerSize:], nil
	}
	if h.Version != artifactVersion {
		return nil, errors.New(errors.PhaseDeserialize, errors.KindIncompatibleArtifact).
			Value(h.Version).
			Detail("artifact format version %d, want %d", h.Version, artifactVersion).
			Build()
	}
	if h.Fingerprint != want {
		return nil, errors.New(errors.PhaseDeserialize, errors.KindIncompatibleArtifact).
			Value(h.Fingerprint.String()).
			Detail("artifact built for engine %s, this engine is %s", h.Fingerprint, want).
			Build()
	}
	return artifact[headerSize:], nil
}
