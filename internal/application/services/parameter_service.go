package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Orelexa/gardrob/internal/application/usecases"
	domainservices "github.com/Orelexa/gardrob/internal/domain/services"
)

const DefaultMaxUploadSize = 10 << 20

// ParameterService reads request fields into use case inputs.
type ParameterService struct {
	maxUploadSize int64
}

func NewParameterService(maxUploadSize int64) *ParameterService {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &ParameterService{maxUploadSize: maxUploadSize}
}

// ErrUploadTooLarge is returned when a multipart body exceeds the limit.
var ErrUploadTooLarge = errors.New("upload too large")

func (s *ParameterService) ParseGarmentForm(w http.ResponseWriter, r *http.Request, userID string) (usecases.CreateGarmentInput, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return usecases.CreateGarmentInput{}, err
	}

	data, mimeType, err := s.readFile(r, "image")
	if err != nil {
		return usecases.CreateGarmentInput{}, err
	}

	return usecases.CreateGarmentInput{
		UserID:    userID,
		Name:      s.getString(r, "name", ""),
		Category:  s.getString(r, "category", ""),
		ImageData: data,
		MimeType:  mimeType,
	}, nil
}

func (s *ParameterService) ParseModelForm(w http.ResponseWriter, r *http.Request, userID string) (usecases.CreateModelInput, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return usecases.CreateModelInput{}, err
	}

	data, mimeType, err := s.readFile(r, "photo")
	if err != nil {
		return usecases.CreateModelInput{}, err
	}

	return usecases.CreateModelInput{
		UserID:    userID,
		Name:      s.getString(r, "name", ""),
		PhotoData: data,
		MimeType:  mimeType,
	}, nil
}

const maxJSONBodySize = 1 << 20

// DecodeJSON reads a small JSON request body into v.
func (s *ParameterService) DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", domainservices.ErrValidation)
		}
		return fmt.Errorf("%w: invalid request body: %v", domainservices.ErrValidation, err)
	}
	return nil
}

func (s *ParameterService) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, s.maxUploadSize)
		}
		return fmt.Errorf("%w: invalid multipart form: %v", domainservices.ErrValidation, err)
	}
	return nil
}

func (s *ParameterService) readFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s file is required", domainservices.ErrValidation, field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", field, err)
	}

	return data, header.Header.Get("Content-Type"), nil
}

func (s *ParameterService) getString(r *http.Request, key, defaultValue string) string {
	value := strings.TrimSpace(r.FormValue(key))
	if value == "" {
		return defaultValue
	}
	return value
}
