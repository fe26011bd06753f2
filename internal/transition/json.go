package transition

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type wire struct {
	Type  Type            `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	Null  bool            `json:"null,omitempty"`
}

// MarshalJSON encodes t as {"type":"Int","value":7} or {"type":"Int","null":true}.
func (t Transition) MarshalJSON() ([]byte, error) {
	w := wire{Type: t.typ, Null: t.null}
	if !t.null && t.typ != None && t.typ != Pulse {
		raw, err := json.Marshal(t.Value())
		if err != nil {
			return nil, fmt.Errorf("transition: encode %s: %w", t.typ, err)
		}
		w.Value = raw
	}
	return json.Marshal(w)
}

func (t *Transition) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("transition: decode: %w", err)
	}
	if w.Null {
		if w.Type == None {
			*t = Transition{}
			return nil
		}
		*t = Transition{typ: w.Type, null: true}
		return nil
	}
	switch w.Type {
	case None:
		*t = Transition{}
		return nil
	case Pulse:
		*t = OfPulse()
		return nil
	}
	if len(w.Value) == 0 || bytes.Equal(w.Value, []byte("null")) {
		*t = Transition{typ: w.Type, null: true}
		return nil
	}

	var err error
	switch w.Type {
	case Bool:
		var v bool
		err = json.Unmarshal(w.Value, &v)
		*t = OfBool(v)
	case Int:
		var v int
		err = json.Unmarshal(w.Value, &v)
		*t = OfInt(v)
	case Float:
		var v float64
		err = json.Unmarshal(w.Value, &v)
		*t = OfFloat(v)
	case String:
		var v string
		err = json.Unmarshal(w.Value, &v)
		*t = OfString(v)
	}
	if err != nil {
		return fmt.Errorf("transition: decode %s value: %w", w.Type, err)
	}
	return nil
}
