package arena

import (
	"encoding/json"
	"fmt"

	"github.com/park285/cheese-arena/pkg/arenadto"
)

// Frame encodes e as a wire frame. Events without data carry no data field.
func (e Event) Frame() (arenadto.Frame, error) {
	f := arenadto.Frame{Event: e.Name}
	if e.Data == nil {
		return f, nil
	}
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return arenadto.Frame{}, fmt.Errorf("encode %s: %w", e.Name, err)
	}
	f.Data = raw
	return f, nil
}
