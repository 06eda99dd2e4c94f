package http

import (
	"bufio"
	"errors"
	"net/http"

	"github.com/Flarenzy/rirblocks/internal/domain"
)

// @Summary Health check
// @Tags health
// @Success 200 {string} string "ok"
// @Router /healthz [get]
func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// @Summary Readiness check
// @Tags health
// @Success 200 {string} string "ready"
// @Failure 503 {string} string "db unavailable"
// @Router /readyz [get]
func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if a.Health != nil {
		if err := a.Health.Ping(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "db ping failed", "err", err.Error())
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// @Summary List countries
// @Tags countries
// @Produce json
// @Success 200 {array} CountryResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/countries [get]
func (a *API) handleListCountries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	countries, err := a.Service.ListCountries(ctx)
	if err != nil {
		a.Logger.ErrorContext(ctx, "reading countries", "err", err.Error())
		a.respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	err = encode(w, r, http.StatusOK, countriesToResponse(countries))
	if err != nil {
		a.Logger.ErrorContext(ctx, "responding to client with country list", "err", err.Error())
	}
}

// @Summary List country blocks
// @Tags countries
// @Produce json
// @Produce plain
// @Param code path string true "ISO 3166 alpha-2 country code"
// @Param family path string true "ipv4 or ipv6"
// @Param format query string false "text for one CIDR per line"
// @Success 200 {object} BlocksResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/countries/{code}/blocks/{family} [get]
func (a *API) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := r.PathValue("code")
	family := r.PathValue("family")

	list, err := a.Service.ListBlocks(ctx, code, family)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			a.Logger.InfoContext(ctx, "rejecting block query", "code", code, "family", family, "err", err.Error())
			a.respondError(w, r, http.StatusBadRequest, "invalid country code or family")
		case errors.Is(err, domain.ErrNotFound):
			a.respondError(w, r, http.StatusNotFound, "country not found")
		default:
			a.Logger.ErrorContext(ctx, "reading country blocks", "code", code, "family", family, "err", err.Error())
			a.respondError(w, r, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		bw := bufio.NewWriter(w)
		for _, p := range list.Blocks {
			bw.WriteString(p.String())
			bw.WriteByte('\n')
		}
		if err := bw.Flush(); err != nil {
			a.Logger.ErrorContext(ctx, "responding to client with block list", "err", err.Error())
		}
		return
	}

	err = encode(w, r, http.StatusOK, blocksToResponse(list))
	if err != nil {
		a.Logger.ErrorContext(ctx, "responding to client with block list", "err", err.Error())
	}
}

// @Summary Look up the countries of an address
// @Tags lookup
// @Produce json
// @Param ip path string true "IPv4 or IPv6 address"
// @Success 200 {object} LookupResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/lookup/{ip} [get]
func (a *API) handleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := r.PathValue("ip")

	res, err := a.Service.Lookup(ctx, ip)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			a.respondError(w, r, http.StatusBadRequest, "invalid ip")
			return
		}
		a.Logger.ErrorContext(ctx, "looking up address", "ip", ip, "err", err.Error())
		a.respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	err = encode(w, r, http.StatusOK, lookupToResponse(res))
	if err != nil {
		a.Logger.ErrorContext(ctx, "responding to client with lookup", "err", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if err := encode(w, r, status, ErrorResponse{Error: msg}); err != nil {
		a.Logger.ErrorContext(r.Context(), "responding to client", "err", err.Error())
	}
}
