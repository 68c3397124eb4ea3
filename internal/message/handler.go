package message

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"chat-service/internal/conversation"
	"chat-service/internal/shared/httpx"
)

type Handler struct{ svc Service }

func NewHandler(s Service) *Handler { return &Handler{svc: s} }

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	convID := httpx.PathUint(r, "id")
	cursor := uint(httpx.QueryInt(r, "cursor", 0))
	limit := httpx.QueryInt(r, "limit", DefaultPageSize)

	msgs, err := h.svc.List(convID, uid, cursor, limit)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{"messages": msgs}, http.StatusOK)
	return nil
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	in, err := httpx.Decode[SendReq](r)
	if err != nil {
		return err
	}
	v, err := h.svc.SendText(r.Context(), httpx.PathUint(r, "id"), uid, in)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, v, http.StatusCreated)
	return nil
}

func (h *Handler) SendFile(w http.ResponseWriter, r *http.Request) error {
	return h.sendUpload(w, r, false)
}

func (h *Handler) SendVoice(w http.ResponseWriter, r *http.Request) error {
	return h.sendUpload(w, r, true)
}

func (h *Handler) sendUpload(w http.ResponseWriter, r *http.Request, voice bool) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		return err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return err
	}
	defer file.Close()

	up := conversation.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	v, err := h.svc.SendFile(r.Context(), httpx.PathUint(r, "id"), uid, r.FormValue("content"), up, voice)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, v, http.StatusCreated)
	return nil
}

func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	body, err := httpx.Decode[struct {
		Emoji string `json:"emoji"`
	}](r)
	if err != nil {
		return err
	}
	set, err := h.svc.AddReaction(httpx.PathUint(r, "message_id"), uid, body.Emoji)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, set, http.StatusOK)
	return nil
}

func (h *Handler) RemoveReaction(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	set, err := h.svc.RemoveReaction(httpx.PathUint(r, "message_id"), uid, r.PathValue("emoji"))
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, set, http.StatusOK)
	return nil
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(r.Context(), httpx.PathUint(r, "message_id"), uid); err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

// ServeAttachment is public: attachment URLs are shared into clients
// and must work without an Authorization header.
func (h *Handler) ServeAttachment(w http.ResponseWriter, r *http.Request) error {
	convID := httpx.PathUint(r, "conversation_id")
	msgID := httpx.PathUint(r, "message_id")

	obj, m, err := h.svc.ServeAttachment(r.Context(), convID, msgID)
	if err != nil {
		return err
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := "attachment"
	if inlineDisposition(contentType) {
		disposition = "inline"
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType(disposition, map[string]string{"filename": path.Base(m.Attachment)}))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	_, _ = io.Copy(w, obj.Body)
	return nil
}
