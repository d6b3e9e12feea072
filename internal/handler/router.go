package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes bundles the handlers and middleware mounted by NewRouter.
type Routes struct {
	Work       *WorkHandler
	Withdrawal *WithdrawalHandler
	Report     *ReportHandler
	Forex      *ForexHandler
	System     *SystemHandler

	// Global wraps every route, API wraps /api/v1 after Authenticate.
	Global       []mux.MiddlewareFunc
	Authenticate mux.MiddlewareFunc
	API          []mux.MiddlewareFunc
	// Idempotency wraps POST endpoints when set.
	Idempotency mux.MiddlewareFunc
}

// NewRouter registers every endpoint.
func NewRouter(rt Routes) *mux.Router {
	r := mux.NewRouter()
	for _, mw := range rt.Global {
		r.Use(mw)
	}

	if rt.System != nil {
		r.HandleFunc("/health", rt.System.Health).Methods(http.MethodGet)
		r.HandleFunc("/ready", rt.System.Ready).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	if rt.Authenticate != nil {
		api.Use(rt.Authenticate)
	}
	for _, mw := range rt.API {
		api.Use(mw)
	}

	post := func(h http.HandlerFunc) http.Handler {
		if rt.Idempotency == nil {
			return h
		}
		return rt.Idempotency(h)
	}

	api.Handle("/work", post(rt.Work.CreateWork)).Methods(http.MethodPost)
	api.HandleFunc("/work", rt.Work.ListWorks).Methods(http.MethodGet)
	api.HandleFunc("/work/{id}", rt.Work.GetWork).Methods(http.MethodGet)
	api.HandleFunc("/work/{id}", rt.Work.TransitionWork).Methods(http.MethodPatch)
	api.HandleFunc("/work/{id}", rt.Work.DeleteWork).Methods(http.MethodDelete)

	api.Handle("/withdrawal", post(rt.Withdrawal.CreateWithdrawal)).Methods(http.MethodPost)
	api.HandleFunc("/withdrawal", rt.Withdrawal.ReviewQueue).Methods(http.MethodGet)
	api.HandleFunc("/withdrawal/{id}", rt.Withdrawal.GetWithdrawal).Methods(http.MethodGet)
	api.HandleFunc("/withdrawal/{id}", rt.Withdrawal.AdvanceWithdrawal).Methods(http.MethodPatch)

	api.HandleFunc("/report", rt.Report.GetReport).Methods(http.MethodGet)

	if rt.Forex != nil {
		api.HandleFunc("/rates", rt.Forex.GetRates).Methods(http.MethodGet)
		api.HandleFunc("/rates/{currency}", rt.Forex.UpdateRate).Methods(http.MethodPut)
	}

	return r
}
