package sections

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dqsurvey/internal/shared/server/respond"
)

const maxPayloadSize = 1 << 20 // 1MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches POST /sectionN and GET /sectionN/<id-chain> for every section.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	for n := 1; n <= Count; n++ {
		rg.POST(fmt.Sprintf("/section%d", n), h.create(n))
		rg.GET(fmt.Sprintf("/section%d/*chain", n), h.get(n))
	}
}

func (h *Handler) create(n int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("section", n)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadSize)

		rec, err := NewRecord(n)
		if err != nil {
			respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, err.Error(), nil)
			return
		}
		dec := json.NewDecoder(c.Request.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(rec); err != nil {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "invalid request body: "+err.Error(), nil)
			return
		}
		rec.SetRecordID(0)

		id, err := h.Svc.Create(c.Request.Context(), rec)
		if err != nil {
			var verr *ValidationError
			switch {
			case errors.As(err, &verr):
				respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, verr.Error(), verr.Fields)
			case errors.Is(err, ErrBrokenChain):
				respond.Error(c, http.StatusUnprocessableEntity, ErrorCodeBrokenChain, err.Error(), nil)
			case errors.Is(err, ErrInvalidInput):
				respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
			default:
				respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to store section", nil)
			}
			return
		}

		c.Set("sectionId", id)
		respond.Created(c, id)
	}
}

func (h *Handler) get(n int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("section", n)
		chain, err := parseChain(c.Param("chain"))
		if err != nil {
			respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
			return
		}

		rec, err := h.Svc.Get(c.Request.Context(), n, chain)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, fmt.Sprintf("section%d not found", n), nil)
			case errors.Is(err, ErrInvalidInput):
				respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, err.Error(), nil)
			default:
				respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "failed to fetch section", nil)
			}
			return
		}

		respond.OK(c, rec)
	}
}

// parseChain splits "/1/2/0/3" into ids. Zero is allowed for skipped sections.
func parseChain(raw string) ([]int64, error) {
	raw = strings.Trim(raw, "/")
	if raw == "" {
		return nil, fmt.Errorf("%w: id chain is required", ErrInvalidInput)
	}
	parts := strings.Split(raw, "/")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("%w: invalid id %q", ErrInvalidInput, p)
		}
		out = append(out, id)
	}
	return out, nil
}
