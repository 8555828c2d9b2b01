/*
 * Copyright 2022 The Gremlins Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package protocol implements the length-prefixed, tagged framing that
// a worker (minion) subprocess uses to stream per-mutation results back
// to its controller, per §6. There is no teacher equivalent for this:
// gremlins never shells out to a worker subprocess of its own, so the
// framing here is purpose-built, following the "explicit, self-describing
// binary framing" direction in §9's design notes rather than coupling to
// any one ecosystem's object serializer.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

// Tag identifies the kind of payload carried by one frame.
type Tag byte

const (
	// TagMutationStarted announces a mutation has been marked STARTED.
	TagMutationStarted Tag = iota + 1
	// TagTestOutcome carries one TestOutcome. The minion does not emit it:
	// per-test outcomes reach the controller inside MUTATION_RESULT.
	TagTestOutcome
	// TagMutationResult carries the final StatusTestPair for a mutation.
	TagMutationResult
	// TagStreamEnd marks the end of a unit's result stream.
	TagStreamEnd
)

func (t Tag) String() string {
	switch t {
	case TagMutationStarted:
		return "MUTATION_STARTED"
	case TagTestOutcome:
		return "TEST_OUTCOME"
	case TagMutationResult:
		return "MUTATION_RESULT"
	case TagStreamEnd:
		return "STREAM_END"
	default:
		return "UNKNOWN"
	}
}

// MaxFrameLength is the large-payload guard of §6: a frame whose declared
// length exceeds this is a protocol violation, not merely a large message.
const MaxFrameLength = 100 * 1024 * 1024

// ErrFrameTooLarge is returned by Reader.ReadFrame when a declared frame
// length exceeds MaxFrameLength.
var ErrFrameTooLarge = fmt.Errorf("protocol: frame exceeds %d bytes", MaxFrameLength)

// MutationStartedPayload is the payload of a TagMutationStarted frame.
type MutationStartedPayload struct {
	ID mutation.ID
}

// TestOutcomePayload is the payload of a TagTestOutcome frame.
type TestOutcomePayload struct {
	MutationID mutation.ID
	Outcome    mutation.TestOutcome
}

// MutationResultPayload is the payload of a TagMutationResult frame.
type MutationResultPayload struct {
	ID     mutation.ID
	Status mutation.DetectionStatus
	Pair   mutation.StatusTestPair
}

// Frame is one decoded protocol message.
type Frame struct {
	Tag     Tag
	Payload []byte
}

// Writer writes length-prefixed frames to an underlying stream, the
// controller-facing side of which reads back with Reader.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w as a frame Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one frame: a tag byte followed by the JSON encoding
// of payload, both prefixed by a 4-byte big-endian length covering the
// tag byte and the JSON body together.
func (fw *Writer) WriteFrame(tag Tag, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("protocol: encode %s payload: %w", tag, err)
	}

	full := make([]byte, 1+len(body))
	full[0] = byte(tag)
	copy(full[1:], body)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(full))) //nolint:gosec // frame length is bounded, checked on read

	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("protocol: write frame length: %w", err)
	}
	if _, err := fw.w.Write(full); err != nil {
		return fmt.Errorf("protocol: write frame body: %w", err)
	}

	return nil
}

// WriteStreamEnd writes the unit-completion terminator frame.
func (fw *Writer) WriteStreamEnd() error {
	return fw.WriteFrame(TagStreamEnd, struct{}{})
}

// Reader reads length-prefixed frames from an underlying stream.
type Reader struct {
	r io.Reader
}

// NewReader wraps r as a frame Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame reads one frame, or returns io.EOF when the stream is
// exhausted without a STREAM_END frame (an abnormal worker exit, per
// §5's cancellation semantics). A frame whose declared length exceeds
// MaxFrameLength returns ErrFrameTooLarge without attempting to read
// the body.
func (fr *Reader) ReadFrame() (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		return Frame{}, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxFrameLength {
		return Frame{}, ErrFrameTooLarge
	}
	if length == 0 {
		return Frame{}, fmt.Errorf("protocol: empty frame")
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return Frame{}, fmt.Errorf("protocol: read frame body: %w", err)
	}

	return Frame{Tag: Tag(buf[0]), Payload: buf[1:]}, nil
}

// DecodeMutationStarted unmarshals a TagMutationStarted frame's payload.
func DecodeMutationStarted(f Frame) (MutationStartedPayload, error) {
	var p MutationStartedPayload
	err := json.Unmarshal(f.Payload, &p)

	return p, err
}

// DecodeTestOutcome unmarshals a TagTestOutcome frame's payload.
func DecodeTestOutcome(f Frame) (TestOutcomePayload, error) {
	var p TestOutcomePayload
	err := json.Unmarshal(f.Payload, &p)

	return p, err
}

// DecodeMutationResult unmarshals a TagMutationResult frame's payload.
func DecodeMutationResult(f Frame) (MutationResultPayload, error) {
	var p MutationResultPayload
	err := json.Unmarshal(f.Payload, &p)

	return p, err
}
