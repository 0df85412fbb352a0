package filing

import (
	"encoding/json"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// UploadCategory tags an uploaded file with its role in the application.
type UploadCategory string

const (
	CategoryDrawings       UploadCategory = "drawings"
	CategoryPriorArt       UploadCategory = "priorArt"
	CategoryAssignmentDocs UploadCategory = "assignmentDocs"
	CategoryInventor       UploadCategory = "inventor"

	CategoryLogo       UploadCategory = "logo"
	CategorySpecimens  UploadCategory = "specimens"
	CategoryConsent    UploadCategory = "consent"
	CategoryForeignReg UploadCategory = "foreignReg"
)

// CategoriesFor returns the fixed category vocabulary of t.
func CategoriesFor(t FilingType) []UploadCategory {
	switch t {
	case FilingTypePatent:
		return []UploadCategory{CategoryDrawings, CategoryPriorArt, CategoryAssignmentDocs, CategoryInventor}
	case FilingTypeTrademark:
		return []UploadCategory{CategoryLogo, CategorySpecimens, CategoryConsent, CategoryForeignReg}
	default:
		return nil
	}
}

// ValidateCategory rejects categories outside t's vocabulary.
func ValidateCategory(t FilingType, c UploadCategory) error {
	for _, allowed := range CategoriesFor(t) {
		if c == allowed {
			return nil
		}
	}
	return errors.New(errors.ErrCodeInvalidCategory, "upload category not allowed for "+t.String()).
		WithDetail(string(c))
}

// DefaultMaxUploadBytes is 10 MiB.
const DefaultMaxUploadBytes = 10 << 20

// DefaultAllowedMediaTypes returns the default media-type allow-list.
func DefaultAllowedMediaTypes() []string {
	return []string{
		"application/pdf",
		"image/png",
		"image/jpeg",
		"image/gif",
		"image/svg+xml",
		"image/tiff",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	}
}

// UploadPolicy holds the client-side acceptance rules for uploads.
type UploadPolicy struct {
	MaxBytes          int64
	AllowedMediaTypes []string
}

// DefaultUploadPolicy returns the 10 MiB / default allow-list policy.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{MaxBytes: DefaultMaxUploadBytes, AllowedMediaTypes: DefaultAllowedMediaTypes()}
}

// UploadCandidate describes a file offered for upload, before it is stored.
type UploadCandidate struct {
	Name      string
	MediaType string
	Size      int64
	Category  UploadCategory
}

// Check validates a candidate for filing type t. Checks run in order:
// category, emptiness, size, media type.
func (p UploadPolicy) Check(t FilingType, c UploadCandidate) error {
	if err := ValidateCategory(t, c.Category); err != nil {
		return err
	}
	if c.Size <= 0 {
		return errors.New(errors.ErrCodeUploadEmpty, "upload is empty").WithDetail(c.Name)
	}
	if p.MaxBytes > 0 && c.Size > p.MaxBytes {
		return errors.Newf(errors.ErrCodeUploadTooLarge, "upload exceeds %d bytes", p.MaxBytes).WithDetail(c.Name)
	}
	mt := NormalizeMediaType(c.MediaType)
	for _, allowed := range p.AllowedMediaTypes {
		if mt == NormalizeMediaType(allowed) {
			return nil
		}
	}
	return errors.New(errors.ErrCodeMediaTypeNotAllowed, "media type not allowed").WithDetail(c.MediaType)
}

// NormalizeMediaType lower-cases a media type and strips its parameters.
func NormalizeMediaType(s string) string {
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(strings.Split(s, ";")[0]))
}

// UploadedFile is a file accepted into the blob store and attached to the
// session. The session holds the blob reference, never the bytes.
type UploadedFile struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	MediaType  string         `json:"mediaType"`
	Size       int64          `json:"size"`
	Category   UploadCategory `json:"category"`
	BlobRef    string         `json:"blobRef"`
	UploadedAt time.Time      `json:"uploadedAt"`
}

// NewUploadedFile builds the descriptor for a stored candidate.
func NewUploadedFile(c UploadCandidate, blobRef string, now time.Time) UploadedFile {
	return UploadedFile{
		ID:         uuid.New().String(),
		Name:       c.Name,
		MediaType:  NormalizeMediaType(c.MediaType),
		Size:       c.Size,
		Category:   c.Category,
		BlobRef:    blobRef,
		UploadedAt: now.UTC(),
	}
}

// UploadSet is the ordered collection of files attached to a session. The
// zero value is an empty set.
type UploadSet struct {
	files []UploadedFile
}

// NewUploadSet returns a set holding files in order.
func NewUploadSet(files ...UploadedFile) *UploadSet {
	s := &UploadSet{}
	for _, f := range files {
		_ = s.Add(f)
	}
	return s
}

// Add appends f. Duplicate ids are rejected.
func (s *UploadSet) Add(f UploadedFile) error {
	if f.ID == "" {
		return errors.InvalidParam("uploaded file id is required")
	}
	if _, ok := s.Get(f.ID); ok {
		return errors.Conflict("uploaded file already attached").WithDetail(f.ID)
	}
	s.files = append(s.files, f)
	return nil
}

// Remove deletes the file with id, preserving the order of the rest.
func (s *UploadSet) Remove(id string) (UploadedFile, bool) {
	for i, f := range s.files {
		if f.ID == id {
			s.files = append(s.files[:i:i], s.files[i+1:]...)
			return f, true
		}
	}
	return UploadedFile{}, false
}

// Get returns the file with id.
func (s *UploadSet) Get(id string) (UploadedFile, bool) {
	for _, f := range s.files {
		if f.ID == id {
			return f, true
		}
	}
	return UploadedFile{}, false
}

// List returns a copy of the files in order; never nil.
func (s *UploadSet) List() []UploadedFile {
	out := make([]UploadedFile, len(s.files))
	copy(out, s.files)
	return out
}

// ByCategory returns the files tagged c.
func (s *UploadSet) ByCategory(c UploadCategory) []UploadedFile {
	var out []UploadedFile
	for _, f := range s.files {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of files.
func (s *UploadSet) Len() int { return len(s.files) }

// Clone returns an independent copy of s.
func (s *UploadSet) Clone() *UploadSet {
	return &UploadSet{files: s.List()}
}

// MarshalJSON encodes the set as an array.
func (s *UploadSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON decodes an array of files.
func (s *UploadSet) UnmarshalJSON(data []byte) error {
	var files []UploadedFile
	if err := json.Unmarshal(data, &files); err != nil {
		return err
	}
	s.files = files
	return nil
}

//Personal.AI order the ending
