package filing

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// SchemaVersion is the version of the record shapes in this package.
const SchemaVersion = 1

// Record is the filing record of one in-progress application. It is a closed
// union of *PatentRecord and *TrademarkRecord; use a type switch to reach the
// fields of the active variant.
type Record interface {
	FilingType() FilingType
	isRecord()
}

// NewRecord returns the empty record for t, or nil when t is Unset.
func NewRecord(t FilingType) Record {
	switch t {
	case FilingTypePatent:
		return &PatentRecord{}
	case FilingTypeTrademark:
		return &TrademarkRecord{}
	default:
		return nil
	}
}

// Patch is a set of top-level field replacements keyed by JSON field name.
// A JSON null value removes the field.
type Patch map[string]json.RawMessage

// PatchFromMap builds a Patch from plain Go values.
func PatchFromMap(m map[string]interface{}) (Patch, error) {
	p := make(Patch, len(m))
	for k, v := range m {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeFieldType, "patch value is not serialisable").WithDetail(k)
		}
		p[k] = raw
	}
	return p, nil
}

// Keys returns the patch keys in sorted order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge shallow-merges patches into r, later patches winning on conflict, and
// returns the merged record. r itself is never modified: on any error the
// caller keeps its original record. Keys unknown to r's variant are rejected,
// as are values of the wrong type and claim lists that break the claim
// invariants.
func Merge(r Record, patches ...Patch) (Record, error) {
	if r == nil {
		return nil, errors.New(errors.ErrCodeInvalidFilingType, "cannot merge into a record without a filing type")
	}
	known := knownFields(r.FilingType())

	var unknown []string
	for _, p := range patches {
		for k := range p {
			if _, ok := known[k]; !ok {
				unknown = append(unknown, k)
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.New(errors.ErrCodeUnknownField, "unknown field for "+r.FilingType().String()+" record").
			WithDetail(strings.Join(unknown, ","))
	}

	current, err := fieldMap(r)
	if err != nil {
		return nil, err
	}
	for _, p := range patches {
		for k, v := range p {
			if isJSONNull(v) {
				delete(current, k)
				continue
			}
			current[k] = v
		}
	}

	merged, err := decodeRecord(r.FilingType(), current)
	if err != nil {
		return nil, err
	}
	if pr, ok := merged.(*PatentRecord); ok {
		if err := pr.Claims.Validate(); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// Fields returns the sorted keys of the fields currently set on r.
func Fields(r Record) []string {
	if r == nil {
		return nil
	}
	m, err := fieldMap(r)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of r.
func Clone(r Record) Record {
	if r == nil {
		return nil
	}
	m, err := fieldMap(r)
	if err != nil {
		return NewRecord(r.FilingType())
	}
	c, err := decodeRecord(r.FilingType(), m)
	if err != nil {
		return NewRecord(r.FilingType())
	}
	return c
}

// IsEmpty reports whether r has no fields set.
func IsEmpty(r Record) bool {
	return len(Fields(r)) == 0
}

// MarshalRecord encodes r as a JSON object keyed by field name. Unset fields
// are omitted.
func MarshalRecord(r Record) ([]byte, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode filing record")
	}
	return b, nil
}

// UnmarshalRecord decodes a JSON object produced by MarshalRecord.
func UnmarshalRecord(t FilingType, data []byte) (Record, error) {
	if !t.IsValid() {
		return nil, errors.New(errors.ErrCodeInvalidFilingType, "cannot decode a record without a filing type")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewRecord(t), nil
	}
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "filing record must be a JSON object")
	}
	return Merge(NewRecord(t), p)
}

// ─────────────────────────────────────────────────────────────────────────────
// Export document
// ─────────────────────────────────────────────────────────────────────────────

// Document is the downloadable form of a filing record.
type Document struct {
	FilingType    FilingType      `json:"filingType"`
	SchemaVersion int             `json:"schemaVersion"`
	Fields        json.RawMessage `json:"fields"`
}

// ExportDocument wraps r in a Document.
func ExportDocument(r Record) (Document, error) {
	if r == nil {
		return Document{}, errors.New(errors.ErrCodeInvalidFilingType, "nothing to export before a filing type is selected")
	}
	b, err := MarshalRecord(r)
	if err != nil {
		return Document{}, err
	}
	return Document{FilingType: r.FilingType(), SchemaVersion: SchemaVersion, Fields: b}, nil
}

// Patch converts the document back into a Patch for Merge.
func (d Document) Patch() (Patch, error) {
	if len(bytes.TrimSpace(d.Fields)) == 0 {
		return Patch{}, nil
	}
	var p Patch
	if err := json.Unmarshal(d.Fields, &p); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "document fields must be a JSON object")
	}
	return p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

// FieldError reports a field value that decodes but is not acceptable.
type FieldError struct {
	Field string
	Value string
}

func (e *FieldError) Error() string {
	return "invalid value " + e.Value + " for " + e.Field
}

func fieldValueError(field, value string) error {
	return &FieldError{Field: field, Value: value}
}

func unmarshalString(data []byte, s *string) error {
	return json.Unmarshal(data, s)
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func fieldMap(r Record) (map[string]json.RawMessage, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode filing record")
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode filing record")
	}
	return m, nil
}

func decodeRecord(t FilingType, fields map[string]json.RawMessage) (Record, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode filing record")
	}
	out := NewRecord(t)
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return nil, decodeError(err)
	}
	return out, nil
}

func decodeError(err error) *errors.AppError {
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return errors.Wrap(err, errors.ErrCodeFieldType, "field value has the wrong type").WithDetail(typeErr.Field)
	}
	var fe *FieldError
	if stderrors.As(err, &fe) {
		return errors.Wrap(err, errors.ErrCodeFieldType, "field value not allowed").WithDetail(fe.Field)
	}
	var ae *errors.AppError
	if stderrors.As(err, &ae) {
		return ae
	}
	return errors.Wrap(err, errors.ErrCodeFieldType, "field value could not be decoded")
}

var (
	knownOnce   sync.Once
	knownByType map[FilingType]map[string]struct{}
)

// IsKnownField reports whether key is a top-level field of t's record.
func IsKnownField(t FilingType, key string) bool {
	_, ok := knownFields(t)[key]
	return ok
}

// knownFields returns the set of JSON keys of t's record variant.
func knownFields(t FilingType) map[string]struct{} {
	knownOnce.Do(func() {
		knownByType = map[FilingType]map[string]struct{}{
			FilingTypePatent:    jsonKeys(reflect.TypeOf(PatentRecord{})),
			FilingTypeTrademark: jsonKeys(reflect.TypeOf(TrademarkRecord{})),
		}
	})
	return knownByType[t]
}

func jsonKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name := strings.Split(tag, ",")[0]
		if name == "" || name == "-" {
			continue
		}
		keys[name] = struct{}{}
	}
	return keys
}

//Personal.AI order the ending
