package eastmoney

import (
	"bytes"
	"encoding/json"
)

// cell is one scalar of a push2 payload. The API mixes numbers, quoted
// strings, "-" placeholders and nulls in the same field across rows; all of
// them decode to a plain string, with placeholders collapsing to "".
type cell string

func (c *cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) >= 2 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "-" {
			s = ""
		}
		*c = cell(s)
		return nil
	}
	*c = cell(data)
	return nil
}

// spotResponse is the envelope of /api/qt/clist/get. A filter that matches
// nothing yields a null data object, not an error.
type spotResponse struct {
	Data *struct {
		Total int               `json:"total"`
		Diff  []map[string]cell `json:"diff"`
	} `json:"data"`
}

// klineResponse is the envelope of /api/qt/stock/kline/get. Each kline is a
// comma-joined record in fields2 order.
type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}
