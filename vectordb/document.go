package vectordb

import (
	"fmt"
	"sort"
	"time"

	"github.com/viant/bintly"

	"policyrag/schema"
)

// Document aliases schema.Document to attach the compact binary codec used
// by snapshot-persisting backends. Every metadata value travels with a type
// tag; chunk metadata is strings and ints in practice but floats and times
// survive a round trip too.
type Document schema.Document

// Metadata value tags in the snapshot stream.
const (
	tagString = int16(iota)
	tagInt
	tagFloat32
	tagFloat64
	tagTime
)

// EncodeBinary writes the document to the stream. Keys are sorted so the
// same document always encodes to the same bytes.
func (d *Document) EncodeBinary(stream *bintly.Writer) error {
	stream.String(d.PageContent)
	keys := make([]string, 0, len(d.Metadata))
	for k := range d.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	stream.Int16(int16(len(keys)))
	for _, k := range keys {
		stream.String(k)
		switch v := d.Metadata[k].(type) {
		case string:
			stream.Int16(tagString)
			stream.String(v)
		case int:
			stream.Int16(tagInt)
			stream.Int(v)
		case float32:
			stream.Int16(tagFloat32)
			stream.Float32(v)
		case float64:
			stream.Int16(tagFloat64)
			stream.Float64(v)
		case time.Time:
			stream.Int16(tagTime)
			stream.Time(v)
		default:
			return fmt.Errorf("unsupported metadata type %T for key %v", v, k)
		}
	}
	return nil
}

// DecodeBinary reads a document previously written by EncodeBinary.
func (d *Document) DecodeBinary(stream *bintly.Reader) error {
	stream.String(&d.PageContent)
	var count int16
	stream.Int16(&count)
	d.Metadata = make(map[string]interface{}, count)
	for i := 0; i < int(count); i++ {
		var key string
		stream.String(&key)
		var tag int16
		stream.Int16(&tag)
		switch tag {
		case tagString:
			var v string
			stream.String(&v)
			d.Metadata[key] = v
		case tagInt:
			var v int
			stream.Int(&v)
			d.Metadata[key] = v
		case tagFloat32:
			var v float32
			stream.Float32(&v)
			d.Metadata[key] = v
		case tagFloat64:
			var v float64
			stream.Float64(&v)
			d.Metadata[key] = v
		case tagTime:
			var v time.Time
			stream.Time(&v)
			d.Metadata[key] = v
		default:
			return fmt.Errorf("unsupported metadata tag %v for key %v", tag, key)
		}
	}
	return nil
}
