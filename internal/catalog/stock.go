package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
)

var ErrInvalidStock = errors.New("stock must be null or a non-negative integer")

// ParseStock decodes a raw JSON stock value. JSON null means unlimited stock.
func ParseStock(raw json.RawMessage) (*int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrInvalidStock
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, ErrInvalidStock
	}
	num, ok := value.(json.Number)
	if !ok {
		return nil, ErrInvalidStock
	}
	n, err := num.Int64()
	if err != nil || n < 0 || n > int64(^uint32(0)>>1) {
		return nil, ErrInvalidStock
	}

	stock := int(n)
	return &stock, nil
}
