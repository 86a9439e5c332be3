package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/quillpress/quill-server/internal/authz"
	"github.com/quillpress/quill-server/internal/content"
	"github.com/quillpress/quill-server/internal/domain"
	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/service"
)

// multipartMemory is how much of a multipart body is kept in memory;
// the remainder spills to temporary files.
const multipartMemory = 8 << 20

// AuthenticatedInput carries only the bearer token.
type AuthenticatedInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
}

// authenticate resolves the Authorization header of a huma request.
func (s *Server) authenticate(ctx context.Context, header string) (*domain.User, error) {
	return s.gate.Authenticate(ctx, header)
}

// requireRoles authenticates and then checks the role of the caller.
func (s *Server) requireRoles(ctx context.Context, header string, roles domain.RoleSet) (*domain.User, error) {
	user, err := s.gate.Authenticate(ctx, header)
	if err != nil {
		return nil, err
	}
	return authz.Require(authz.WithIdentity(ctx, user), roles)
}

// isMultipart reports whether the request body is a multipart form.
func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// parseForm parses a multipart or urlencoded body no larger than the
// configured upload limit.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	var err error
	if isMultipart(r) {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domainerrors.Validationf("request body exceeds %d bytes", tooLarge.Limit)
	}
	return domainerrors.Validation("failed to parse form data")
}

// decodeJSON reads a JSON body no larger than the configured upload limit.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domainerrors.Validationf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return domainerrors.Validation("invalid JSON body")
	}
	return nil
}

// formImage reads an optional file field. A missing field yields nil.
func formImage(r *http.Request, field string) (*service.ImageFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, domainerrors.Validationf("invalid %s upload", field)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, domainerrors.Validationf("failed to read %s upload", field)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &service.ImageFile{Data: data, Filename: header.Filename}, nil
}

// formValue returns a form field and whether it was sent at all.
func formValue(r *http.Request, key string) (string, bool) {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// formTags accepts tags either as repeated fields or comma separated.
func formTags(r *http.Request) ([]string, bool) {
	values, ok := r.PostForm["tags"]
	if !ok {
		return nil, false
	}
	tags := []string{}
	for _, v := range values {
		tags = append(tags, content.SplitTags(v)...)
	}
	return tags, true
}

// formBool parses an optional boolean field.
func formBool(r *http.Request, key string) (value, present bool, err error) {
	raw, ok := formValue(r, key)
	if !ok || strings.TrimSpace(raw) == "" {
		return false, false, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, true, domainerrors.Validationf("%s must be true or false", key)
	}
	return v, true, nil
}
