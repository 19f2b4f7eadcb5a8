// files.go — HTTP handlers файловых операций Dropspot.
// Upload, Info по коду, Download по коду.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/dropspot/internal/api/errors"
	"github.com/bigkaa/dropspot/internal/service"
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	shareSvc *service.ShareService
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(shareSvc *service.ShareService) *FilesHandler {
	return &FilesHandler{shareSvc: shareSvc}
}

// Upload обрабатывает POST /api/v1/files.
// Multipart form с полем file. Тело не буферизуется: часть с файлом
// стримится напрямую в blob-хранилище, лимит размера обрывает
// запись на лету.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ожидается запрос multipart/form-data с полем 'file'")
		return
	}

	// Ищем первую часть с именем "file"; остальные части игнорируются
	var filePart *multipartPart
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Ошибка разбора multipart: %s", err.Error()))
			return
		}
		if part.FormName() == "file" {
			filePart = &multipartPart{
				reader:       part,
				filename:     part.FileName(),
				contentType:  part.Header.Get("Content-Type"),
				declaredSize: partContentLength(part.Header.Get("Content-Length")),
			}
			break
		}
		part.Close()
	}

	if filePart == nil || filePart.filename == "" {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer filePart.reader.Close()

	rec, shareErr := h.shareSvc.SubmitUpload(r.Context(), filePart.reader, filePart.filename, filePart.contentType, filePart.declaredSize)
	if shareErr != nil {
		apierrors.WriteError(w, shareErr.StatusCode, shareErr.Code, shareErr.Message)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// Info обрабатывает GET /api/v1/files/{code}.
// Возвращает метаданные живого файла: 404 для неизвестного или
// некорректного кода, 410 — если TTL истёк в момент обращения.
func (h *FilesHandler) Info(w http.ResponseWriter, r *http.Request) {
	rec, shareErr := h.shareSvc.GetInfo(chi.URLParam(r, "code"))
	if shareErr != nil {
		apierrors.WriteError(w, shareErr.StatusCode, shareErr.Code, shareErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Download обрабатывает GET /api/v1/files/{code}/download.
// Отдаёт содержимое через http.ServeContent: Range requests (206),
// If-None-Match по ETag (304).
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	blob, rec, shareErr := h.shareSvc.FetchDownload(r.Context(), chi.URLParam(r, "code"))
	if shareErr != nil {
		apierrors.WriteError(w, shareErr.StatusCode, shareErr.Code, shareErr.Message)
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", rec.OriginalName))
	w.Header().Set("ETag", fmt.Sprintf("\"%s\"", rec.Checksum))
	w.Header().Set("Accept-Ranges", "bytes")

	http.ServeContent(w, r, rec.OriginalName, rec.CreatedAt, blob)
}

// multipartPart — часть multipart-формы с файлом.
type multipartPart struct {
	reader      io.ReadCloser
	filename    string
	contentType string
	// declaredSize — размер из Content-Length части, -1 если клиент
	// его не прислал. Заголовок запроса для этого не годится: он
	// включает multipart-обрамление и завысил бы размер файла.
	declaredSize int64
}

// partContentLength разбирает Content-Length части формы.
// Отсутствующее или некорректное значение — размер неизвестен (-1);
// заниженное значение не опасно: streaming-лимит остаётся в силе.
func partContentLength(v string) int64 {
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// writeJSON записывает JSON-ответ с указанным статус-кодом.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
