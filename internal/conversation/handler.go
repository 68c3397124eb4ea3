package conversation

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"chat-service/internal/shared/httpx"
	"chat-service/internal/shared/validate"
)

type Handler struct{ svc Service }

func NewHandler(s Service) *Handler { return &Handler{svc: s} }

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	items, err := h.svc.List(uid)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{"items": items}, http.StatusOK)
	return nil
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}

	var in CreateReq
	var avatar *Upload

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return err
		}
		in.Type = Type(r.FormValue("type"))
		in.Name = r.FormValue("name")
		in.Description = r.FormValue("description")
		in.MemberIDs = parseIDList(r.FormValue("member_ids"))

		if file, header, err := r.FormFile("avatar"); err == nil {
			defer file.Close()
			avatar = &Upload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        file,
			}
		}
	} else {
		in, err = httpx.Decode[CreateReq](r)
		if err != nil {
			return err
		}
	}
	if err := validate.Struct(in); err != nil {
		return err
	}

	d, reused, err := h.svc.Create(r.Context(), uid, in, avatar)
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, d, status)
	return nil
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	d, err := h.svc.Get(httpx.PathUint(r, "id"), uid)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, d, http.StatusOK)
	return nil
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	if err := h.svc.MarkRead(httpx.PathUint(r, "id"), uid); err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	if err := h.svc.Leave(httpx.PathUint(r, "id"), uid); err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(r.Context(), httpx.PathUint(r, "id"), uid); err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

// ServeAvatar is public: avatar URLs are embedded in clients and must
// work without an Authorization header.
func (h *Handler) ServeAvatar(w http.ResponseWriter, r *http.Request) error {
	obj, err := h.svc.ServeAvatar(r.Context(), httpx.PathUint(r, "id"))
	if err != nil {
		return err
	}
	defer obj.Body.Close()

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	_, _ = io.Copy(w, obj.Body)
	return nil
}

func (h *Handler) SetTyping(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	if err := h.svc.SetTyping(r.Context(), httpx.PathUint(r, "id"), uid); err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) ListTyping(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	typing, err := h.svc.ListTyping(r.Context(), httpx.PathUint(r, "id"), uid)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{"typing": typing}, http.StatusOK)
	return nil
}

func parseIDList(s string) []uint {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64); err == nil && n > 0 {
			out = append(out, uint(n))
		}
	}
	return out
}
