package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/vejoias/internal/domain/catalog"
)

func (h *Handler) listJewels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{
		Search:       strings.TrimSpace(q.Get("busca")),
		CategorySlug: strings.TrimSpace(q.Get("categoria")),
	}
	var err error
	if f.InStock, err = queryBool(q.Get("em_estoque")); err != nil {
		fail(w, r, badField("em_estoque", "must be a boolean"))
		return
	}
	if f.FeaturedOnly, err = queryBool(q.Get("destaque")); err != nil {
		fail(w, r, badField("destaque", "must be a boolean"))
		return
	}

	jewels, err := h.Catalog.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range jewels {
			encodeJewel(e, &jewels[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getJewel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	j, err := h.Catalog.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeJewel(e, j) })
}

func (h *Handler) createJewel(w http.ResponseWriter, r *http.Request) {
	j, err := decodeJewel(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Catalog.Create(r.Context(), j); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeJewel(e, j) })
}

func (h *Handler) updateJewel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	j, err := decodeJewel(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	j.ID = id
	if err := h.Catalog.Update(r.Context(), j); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeJewel(e, j) })
}

func (h *Handler) deleteJewel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Catalog.Delete(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Catalog.Categories(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range cats {
			encodeCategory(e, &cats[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var c catalog.Category
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "nome":
			c.Name, err = readString(d, key)
		case "slug":
			c.Slug, err = readString(d, key)
		case "descricao":
			c.Description, err = readString(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Catalog.CreateCategory(r.Context(), &c); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCategory(e, &c) })
}

// queryBool treats an absent parameter as false.
func queryBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(strings.ToLower(s))
}
