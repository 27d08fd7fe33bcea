package pubsub

import (
	"fmt"
	"reflect"

	"github.com/hamba/avro/v2"
)

// Codec matches goka.Codec so codecs can be handed straight to emitters.
type Codec interface {
	Encode(value any) (data []byte, err error)
	Decode(data []byte) (value any, err error)
}

var _ Codec = (*AvroCodec)(nil)

// AvroCodec encodes one record type with a static Avro schema.
type AvroCodec struct {
	schema    avro.Schema
	prototype reflect.Type
}

func NewAvroCodec(schema string, prototype any) (*AvroCodec, error) {
	parsed, err := avro.Parse(schema)
	if err != nil {
		return nil, fmt.Errorf("parsing avro schema: %w", err)
	}

	pt := reflect.TypeOf(prototype)
	if pt.Kind() == reflect.Ptr {
		pt = pt.Elem()
	}

	return &AvroCodec{schema: parsed, prototype: pt}, nil
}

func (c *AvroCodec) Encode(value any) ([]byte, error) {
	data, err := avro.Marshal(c.schema, value)
	if err != nil {
		return nil, fmt.Errorf("marshaling to Avro: %w", err)
	}

	return data, nil
}

// Decode returns a pointer to a new value of the prototype type.
func (c *AvroCodec) Decode(data []byte) (any, error) {
	instance := reflect.New(c.prototype).Interface()
	if err := avro.Unmarshal(c.schema, data, instance); err != nil {
		return nil, fmt.Errorf("unmarshaling from Avro: %w", err)
	}

	return instance, nil
}
