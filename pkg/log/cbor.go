package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Trace records are encoded canonically with RFC 3339 nanosecond timestamps,
// so two traces of the same run compare byte for byte.
var (
	traceEnc cbor.EncMode
	traceDec cbor.DecMode
)

func init() {
	var err error

	traceEnc, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace CBOR encoder: %v", err))
	}

	// Records written by newer clients may carry keys this reader does not
	// know; they are skipped.
	traceDec, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace CBOR decoder: %v", err))
	}
}

// EncodeEvent encodes a single trace record.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent decodes a single trace record.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := traceDec.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

func newTraceEncoder(w io.Writer) *cbor.Encoder {
	return traceEnc.NewEncoder(w)
}

func newTraceDecoder(r io.Reader) *cbor.Decoder {
	return traceDec.NewDecoder(r)
}
