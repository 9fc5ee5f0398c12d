package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Frame is an envelope serialized once for fan-out.
type Frame struct {
	ID   uint64
	Data []byte // JSON body, single line
}

// Encode serializes e into a Frame.
func Encode(e Envelope) (Frame, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Frame{}, fmt.Errorf("event: encode %d: %w", e.ID, err)
	}
	return Frame{ID: e.ID, Data: data}, nil
}

// WriteTo writes f as one SSE record. json.Marshal never emits raw newlines,
// so a single data line is always enough.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.Grow(len(f.Data) + 32)
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(f.ID, 10))
	buf.WriteString("\ndata: ")
	buf.Write(f.Data)
	buf.WriteString("\n\n")
	return buf.WriteTo(w)
}

// Comment is an SSE comment record; clients ignore it.
func Comment(text string) []byte {
	return []byte(":" + text + "\n\n")
}
