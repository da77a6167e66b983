package surface

import (
	"bytes"
	"encoding/json"

	"github.com/thatsimonsguy/pool-controller/internal/model"
)

// unmarshalStrict rejects payloads with fields we do not model. Both ends of
// the wire are ours, so an unknown field means a version mismatch worth
// surfacing rather than silently ignoring.
func unmarshalStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func marshalTimerCommand(cmd model.TimerCommand) string {
	b, err := json.Marshal(cmd)
	if err != nil {
		return `{"mode":1,"duration":0}`
	}
	return string(b)
}
