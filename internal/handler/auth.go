package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/vejoias/internal/auth"
	"github.com/xenking/vejoias/internal/domain/user"
)

// authenticate requires a valid access token and stores the caller in the
// request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			fail(w, r, errUnauthenticated)
			return
		}
		p, err := h.Tokens.Verify(raw, auth.TokenAccess)
		if err != nil {
			fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

// requireStaff checks the staff flag against the user record, so a demoted
// or deactivated account loses access before its token expires.
func (h *Handler) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok || !p.Staff {
			fail(w, r, errForbidden)
			return
		}
		u, err := h.Users.Get(r.Context(), p.UserID)
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			fail(w, r, errForbidden)
			return
		case err != nil:
			fail(w, r, err)
			return
		case !u.Active || !u.Staff:
			fail(w, r, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// principal is only called behind authenticate.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req user.RegisterRequest
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			req.Email, err = readString(d, key)
		case "senha", "password":
			req.Password, err = readString(d, key)
		case "nome", "first_name":
			req.FirstName, err = readString(d, key)
		case "sobrenome", "last_name":
			req.LastName, err = readString(d, key)
		case "telefone":
			req.Phone, err = readString(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	u, err := h.Users.Register(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeUser(e, u) })
}

func (h *Handler) obtainToken(w http.ResponseWriter, r *http.Request) {
	var email, password string
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email", "username":
			email, err = readString(d, key)
		case "senha", "password":
			password, err = readString(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if email == "" || password == "" {
		fail(w, r, &requestError{
			msg:    "email and password are required",
			fields: missing(map[string]string{"email": email, "senha": password}),
		})
		return
	}

	u, err := h.Users.Authenticate(r.Context(), email, password)
	if err != nil {
		fail(w, r, err)
		return
	}
	pair, err := h.Tokens.Issue(u.ID, u.Staff)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("access")
		e.Str(pair.Access)
		e.FieldStart("refresh")
		e.Str(pair.Refresh)
		e.FieldStart("access_expires_at")
		timestamp(e, pair.AccessExpiresAt)
		e.ObjEnd()
	})
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	var refresh string
	err := readObject(r, func(d *jx.Decoder, key string) error {
		if key != "refresh" {
			return d.Skip()
		}
		var err error
		refresh, err = readString(d, key)
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if refresh == "" {
		fail(w, r, badField("refresh", "required"))
		return
	}

	p, err := h.Tokens.Verify(refresh, auth.TokenRefresh)
	if err != nil {
		fail(w, r, err)
		return
	}
	u, err := h.Users.Get(r.Context(), p.UserID)
	if errors.Is(err, user.ErrUserNotFound) {
		fail(w, r, errors.Wrap(auth.ErrInvalidToken, "unknown user"))
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	if !u.Active {
		fail(w, r, errors.Wrap(auth.ErrInvalidToken, "account disabled"))
		return
	}
	access, expires, err := h.Tokens.Access(u.ID, u.Staff)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("access")
		e.Str(access)
		e.FieldStart("access_expires_at")
		timestamp(e, expires)
		e.ObjEnd()
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), principal(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeUser(e, u) })
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range users {
			encodeUser(e, &users[i])
		}
		e.ArrEnd()
	})
}

// missing returns a "required" entry for every empty value.
func missing(values map[string]string) map[string]string {
	fields := make(map[string]string)
	for k, v := range values {
		if v == "" {
			fields[k] = "required"
		}
	}
	return fields
}
