package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Get(r.Context(), principal(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var (
		jewelID  int64
		quantity = 1
	)
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "joia_id":
			jewelID, err = readInt64(d, key)
		case "quantidade":
			quantity, err = readInt(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if jewelID <= 0 {
		fail(w, r, badField("joia_id", "required"))
		return
	}

	c, err := h.Carts.AddItem(r.Context(), principal(r).UserID, jewelID, quantity)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// removeFromCart takes joia_id from the query string or, failing that, a
// JSON body.
func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	var jewelID int64
	if raw := r.URL.Query().Get("joia_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fail(w, r, badField("joia_id", "must be an integer"))
			return
		}
		jewelID = id
	} else {
		err := readObject(r, func(d *jx.Decoder, key string) error {
			if key != "joia_id" {
				return d.Skip()
			}
			var err error
			jewelID, err = readInt64(d, key)
			return err
		})
		if err != nil {
			fail(w, r, err)
			return
		}
	}
	if jewelID <= 0 {
		fail(w, r, badField("joia_id", "required"))
		return
	}

	c, err := h.Carts.RemoveItem(r.Context(), principal(r).UserID, jewelID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}
