package handlers

import (
	"net/http"

	"github.com/ukydev/fleet-rental/internal/middleware"
)

const (
	permViewFleet   = "view_fleet"
	permQuoteRental = "quote_rental"
	permLoadFleet   = "load_fleet"
)

// NewRouter wires the rental API routes. When publicReads is false the
// fleet and quote endpoints require a token whose role grants view_fleet or
// quote_rental.
func NewRouter(fleet *FleetHandler, authHandler *AuthHandler, authMW *middleware.AuthMiddleware, rateLimit *middleware.RateLimitMiddleware, publicReads bool) http.Handler {
	mux := http.NewServeMux()

	read := func(action string, h http.HandlerFunc) http.Handler {
		if publicReads {
			return h
		}
		return authMW.RequireToken(authMW.RequirePermission(action)(h))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "ok")
	})
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	mux.Handle("GET /api/fleet", read(permViewFleet, fleet.Summary))
	mux.Handle("GET /api/fleet/summary", read(permViewFleet, fleet.SummaryText))
	mux.Handle("GET /api/fleet/cars", read(permViewFleet, fleet.Cars))
	mux.Handle("GET /api/fleet/cars/report", read(permQuoteRental, fleet.CarsReport))
	mux.Handle("GET /api/fleet/vans", read(permViewFleet, fleet.Vans))
	mux.Handle("GET /api/fleet/brands", read(permViewFleet, fleet.Brands))
	mux.Handle("GET /api/fleet/{kind}/{plate}/cost", read(permQuoteRental, fleet.Quote))
	mux.Handle("POST /api/fleet/lines", authMW.RequirePermission(permLoadFleet)(http.HandlerFunc(fleet.LoadLines)))

	return rateLimit.RateLimit(120, 60)(authMW.Authenticate(mux))
}
