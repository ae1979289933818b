package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eduardopventura/demandflow/internal/shared/storage"
)

// UploadHandler stored-file endpoints backing file field values
type UploadHandler struct {
	store *storage.MinioStore
}

func NewUploadHandler(store *storage.MinioStore) *UploadHandler {
	return &UploadHandler{store: store}
}

// UploadedFile upload result
type UploadedFile struct {
	Ref      string `json:"ref"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Upload POST /api/v1/files
// Stores the uploaded files and returns the references to put into file
// field values.
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.store == nil {
		InternalError(c, "file storage is not configured")
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "cannot parse upload: "+err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		BadRequest(c, "no files uploaded")
		return
	}

	var uploaded []UploadedFile
	for _, fileHeader := range files {
		src, err := fileHeader.Open()
		if err != nil {
			InternalError(c, "read upload: "+err.Error())
			return
		}
		ref, err := h.store.Upload(c.Request.Context(), fileHeader.Filename, src, fileHeader.Size)
		src.Close()
		if err != nil {
			InternalError(c, "store upload: "+err.Error())
			return
		}
		uploaded = append(uploaded, UploadedFile{
			Ref:      ref,
			Filename: fileHeader.Filename,
			Size:     fileHeader.Size,
		})
	}
	Created(c, gin.H{"files": uploaded})
}

// Download GET /api/v1/files/*ref
// Streams a stored file back under its display name.
func (h *UploadHandler) Download(c *gin.Context) {
	if h.store == nil {
		InternalError(c, "file storage is not configured")
		return
	}
	ref := c.Param("ref")
	if len(ref) > 0 && ref[0] == '/' {
		ref = ref[1:]
	}
	content, name, err := h.store.Resolve(c.Request.Context(), ref)
	if err != nil {
		NotFound(c, "file not found")
		return
	}
	defer content.Close()

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, content); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
