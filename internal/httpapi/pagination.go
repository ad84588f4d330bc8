package httpapi

import (
	"net/http"
	"strconv"

	"github.com/marktennyson/nextbrowse-sub001/internal/apperr"
)

// paginationParams is the parsed form of §6's two paging styles: page/
// pageSize (1-based) or offset/limit (0-based). requested is false when
// the caller supplied neither style, in which case the full listing is
// returned with no pagination{} envelope field.
type paginationParams struct {
	requested bool
	offset    int
	limit     int
}

// parsePagination accepts page/pageSize OR offset/limit. limit and pageSize
// must lie in 1..1000, offset must be ≥ 0 and page ≥ 1; a value outside its
// range is rejected as BadRequest, not clamped. Supplying both styles is not
// an error — offset/limit wins if present, otherwise page/pageSize is used.
func parsePagination(r *http.Request) (paginationParams, error) {
	q := r.URL.Query()

	if offsetStr, limitStr := q.Get("offset"), q.Get("limit"); offsetStr != "" || limitStr != "" {
		offset, err := parseNonNegativeInt(offsetStr, 0)
		if err != nil {
			return paginationParams{}, apperr.New(apperr.BadRequest, "invalid offset")
		}
		limit, err := parseBoundedInt(limitStr, 1, 1000, 1000)
		if err != nil {
			return paginationParams{}, apperr.New(apperr.BadRequest, "invalid limit")
		}
		return paginationParams{requested: true, offset: offset, limit: limit}, nil
	}

	if pageStr, pageSizeStr := q.Get("page"), q.Get("pageSize"); pageStr != "" || pageSizeStr != "" {
		page, err := parseBoundedInt(pageStr, 1, 1_000_000_000, 1)
		if err != nil {
			return paginationParams{}, apperr.New(apperr.BadRequest, "invalid page")
		}
		pageSize, err := parseBoundedInt(pageSizeStr, 1, 1000, 1000)
		if err != nil {
			return paginationParams{}, apperr.New(apperr.BadRequest, "invalid pageSize")
		}
		return paginationParams{requested: true, offset: (page - 1) * pageSize, limit: pageSize}, nil
	}

	return paginationParams{}, nil
}

func parseNonNegativeInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperr.New(apperr.BadRequest, "must be a non-negative integer")
	}
	return n, nil
}

func parseBoundedInt(s string, min, max, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, apperr.New(apperr.BadRequest, "out of range")
	}
	return n, nil
}

// paginationEnvelope describes the slice actually returned, echoed back to
// the client under the "pagination" key.
type paginationEnvelope struct {
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// paginate applies p to items, returning the slice and the envelope to
// report back. When p.requested is false the full slice is returned and
// the envelope is the zero value (callers omit it from the response).
func paginate[T any](items []T, p paginationParams) ([]T, paginationEnvelope) {
	if !p.requested {
		return items, paginationEnvelope{}
	}
	total := len(items)
	start := p.offset
	if start > total {
		start = total
	}
	end := start + p.limit
	if end > total {
		end = total
	}
	return items[start:end], paginationEnvelope{
		Offset:  p.offset,
		Limit:   p.limit,
		Total:   total,
		HasMore: end < total,
	}
}
