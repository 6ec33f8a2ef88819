package validators

import (
	"errors"
	"io"
	"net/http"

	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
)

const multipartOverhead = 1 << 20

// ReadMultipartFile returns the bytes of one multipart field, refusing
// bodies larger than maxBytes.
func ReadMultipartFile(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}
	file, _, err := r.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "file too large").WithDetails(map[string]any{"max_bytes": maxBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart field "+field+" required").WithDetails(map[string]any{"field": field})
	}
	defer file.Close()

	reader := io.Reader(file)
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file too large").WithDetails(map[string]any{"max_bytes": maxBytes})
	}
	return data, nil
}
