package user

import (
	"net/http"

	"chat-service/internal/shared/httpx"
	"chat-service/internal/shared/jwt"
	"chat-service/internal/shared/validate"
)

type Handler struct{ svc Service }

func NewHandler(s Service) *Handler { return &Handler{svc: s} }

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	body, err := httpx.Decode[RegisterReq](r)
	if err != nil {
		return err
	}
	if err = validate.Struct(body); err != nil {
		return err
	}
	u, err := h.svc.Register(body.Email, body.Password, body.Name)
	if err != nil {
		return err
	}
	token, _ := jwt.Make(u.ID)
	httpx.WriteJSON(w, AuthResponse{
		UserID: u.ID, Name: u.Name, Email: u.Email, AccessToken: token,
	}, http.StatusCreated)
	return nil
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) error {
	body, err := httpx.Decode[LoginReq](r)
	if err != nil {
		return err
	}
	if err = validate.Struct(body); err != nil {
		return err
	}
	u, err := h.svc.Login(body.Email, body.Password)
	if err != nil {
		return err
	}
	token, _ := jwt.Make(u.ID)
	httpx.WriteJSON(w, AuthResponse{
		UserID: u.ID, Name: u.Name, Email: u.Email, AccessToken: token,
	}, http.StatusOK)
	return nil
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) error {
	u, err := h.svc.GetByID(httpx.PathUint(r, "user_id"))
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, u.Public(), http.StatusOK)
	return nil
}
