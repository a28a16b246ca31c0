package kamis

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Format is the provider return type (p_returntype).
type Format string

const (
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// rawItem is one <item> (or JSON item object) flattened to field -> text.
type rawItem map[string]string

func (r rawItem) get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

// envelope is the format-independent shape of every provider response.
type envelope struct {
	Code    string
	HasCode bool
	Message string
	Items   []rawItem
}

var (
	codeFields    = map[string]bool{"resultCode": true, "result_code": true, "error_code": true, "errorCode": true}
	messageFields = map[string]bool{"resultMsg": true, "result_msg": true, "error_msg": true, "message": true}
)

// DetectFormat sniffs the body, falling back to the requested format.
func DetectFormat(body []byte, requested Format) Format {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '{', '[':
			return FormatJSON
		case '<':
			return FormatXML
		}
	}
	if requested == "" {
		return FormatXML
	}
	return requested
}

// DecodeEnvelope reads an XML or JSON response body into an envelope.
func DecodeEnvelope(body []byte, format Format) (*envelope, error) {
	var (
		env *envelope
		err error
	)
	switch DetectFormat(body, format) {
	case FormatJSON:
		env, err = decodeJSON(body)
	default:
		env, err = decodeXML(body)
	}
	if err != nil {
		return nil, &FetchError{Kind: KindParse, Err: err}
	}
	return env, nil
}

func decodeXML(body []byte) (*envelope, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	// Declared legacy charsets are read as-is; field names are ASCII either way.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }

	env := &envelope{}
	var (
		item      rawItem
		itemDepth int
		field     string
		depth     int
		sawRoot   bool
		text      strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if item == nil && name == "condition" {
				// request echo, may contain its own <item>
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("decode xml: %w", err)
				}
				continue
			}
			depth++
			sawRoot = true
			text.Reset()
			if item == nil && name == "item" {
				item = rawItem{}
				itemDepth = depth
				continue
			}
			if item != nil && depth == itemDepth+1 {
				field = name
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			name := t.Name.Local
			value := strings.TrimSpace(text.String())
			switch {
			case item != nil && depth == itemDepth:
				env.Items = append(env.Items, item)
				item = nil
			case item != nil && depth == itemDepth+1:
				item[field] = value
			case item == nil && codeFields[name] && !env.HasCode:
				env.Code = value
				env.HasCode = true
			case item == nil && messageFields[name] && env.Message == "":
				env.Message = value
			}
			text.Reset()
			depth--
		}
	}

	if !sawRoot {
		return nil, errors.New("decode xml: empty document")
	}
	return env, nil
}

func decodeJSON(body []byte) (*envelope, error) {
	var root interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	env := &envelope{}
	switch v := root.(type) {
	case map[string]interface{}:
		readJSONObject(env, v)
	case []interface{}:
		readJSONList(env, v)
	default:
		return nil, fmt.Errorf("decode json: unexpected top-level %T", root)
	}
	return env, nil
}

// readJSONObject handles {"data": {...}}, {"data": ["001"]} and flat
// {"error_code": ..., "price": [...]} layouts.
func readJSONObject(env *envelope, obj map[string]interface{}) {
	for key, val := range obj {
		if codeFields[key] && !env.HasCode {
			env.Code = scalarString(val)
			env.HasCode = true
		}
		if messageFields[key] && env.Message == "" {
			env.Message = scalarString(val)
		}
	}

	if data, ok := obj["data"]; ok {
		switch d := data.(type) {
		case map[string]interface{}:
			readJSONObject(env, d)
		case []interface{}:
			readJSONList(env, d)
		}
	}

	for _, key := range []string{"item", "price"} {
		if raw, ok := obj[key]; ok {
			env.Items = append(env.Items, jsonItems(raw)...)
		}
	}
}

// readJSONList handles a bare code list such as ["001"] or a list of items.
func readJSONList(env *envelope, list []interface{}) {
	for _, el := range list {
		switch v := el.(type) {
		case map[string]interface{}:
			env.Items = append(env.Items, jsonItem(v))
		default:
			if !env.HasCode {
				env.Code = scalarString(v)
				env.HasCode = true
			}
		}
	}
}

func jsonItems(raw interface{}) []rawItem {
	switch v := raw.(type) {
	case map[string]interface{}:
		return []rawItem{jsonItem(v)}
	case []interface{}:
		items := make([]rawItem, 0, len(v))
		for _, el := range v {
			if obj, ok := el.(map[string]interface{}); ok {
				items = append(items, jsonItem(obj))
			}
		}
		return items
	}
	return nil
}

func jsonItem(obj map[string]interface{}) rawItem {
	item := make(rawItem, len(obj))
	for k, v := range obj {
		item[k] = scalarString(v)
	}
	return item
}

// scalarString renders strings and numbers alike. Nested values become "".
func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case []interface{}:
		// Some fields are sent as a single-element list, e.g. ["-"].
		if len(s) == 1 {
			return scalarString(s[0])
		}
	}
	return ""
}
