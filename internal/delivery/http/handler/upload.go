package handler

import (
	"net/http"

	"clinic-booking/internal/usecase"
)

const maxImageSize = 5 << 20

// readImage pulls the "image" part of a multipart form. The caller closes the
// returned body.
func readImage(w http.ResponseWriter, r *http.Request) (usecase.ImageUpload, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+(1<<20))
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		return usecase.ImageUpload{}, nil, false
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return usecase.ImageUpload{}, nil, false
	}

	image := usecase.ImageUpload{
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
		Size:        header.Size,
	}
	return image, func() { file.Close() }, true
}
