package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/group-2-odp-bni/be-capstone-project/internal/metrics"
	"github.com/group-2-odp-bni/be-capstone-project/internal/middleware"
	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/service"
	"github.com/group-2-odp-bni/be-capstone-project/internal/storage"
)

func (a *API) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := a.bills.CreateBill(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusCreated, "bill created", res)
}

func (a *API) handleBillDetail(w http.ResponseWriter, r *http.Request) {
	billID := mux.Vars(r)["billId"]
	detail, err := a.bills.GetBillDetail(r.Context(), billID, middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "OK", detail)
}

func (a *API) handleMemberInvoice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	inv, err := a.bills.GetMemberInvoice(r.Context(), vars["billId"], vars["memberId"], middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "OK", inv)
}

func (a *API) handlePayIntent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body struct {
		SourceWalletID string `json:"sourceWalletId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	err := a.bills.PayIntent(r.Context(), vars["billId"], vars["memberId"], middleware.GetUserID(r.Context()), body.SourceWalletID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusAccepted, "payment request accepted", map[string]string{"status": "PENDING_PROCESS"})
}

func (a *API) handleMarkPaidBatch(w http.ResponseWriter, r *http.Request) {
	billID := mux.Vars(r)["billId"]
	var body struct {
		MemberIDs []string `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := a.ledger.MarkMembersPaid(r.Context(), billID, middleware.GetUserID(r.Context()), body.MemberIDs)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, fmt.Sprintf("%d members updated", res.Updated), res)
}

func (a *API) handleRemind(w http.ResponseWriter, r *http.Request) {
	billID := mux.Vars(r)["billId"]
	var body struct {
		Channels []string `json:"channels"`
	}
	// Body is optional; channels default to wa.
	_ = json.NewDecoder(r.Body).Decode(&body)

	res, err := a.bills.RemindUnpaid(r.Context(), billID, middleware.GetUserID(r.Context()), body.Channels)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusAccepted, "reminder queued", res)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.ListFilter{
		Status: q.Get("status"),
		Query:  q.Get("q"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = limit
	}
	if cursor, err := strconv.ParseInt(q.Get("cursor"), 10, 64); err == nil {
		f.Cursor = cursor
	}
	userID := middleware.GetUserID(r.Context())

	var (
		data any
		err  error
	)
	if q.Get("view") == "assigned" {
		data, err = a.bills.ListAssigned(r.Context(), userID, f)
	} else {
		data, err = a.bills.ListOwned(r.Context(), userID, f)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respond(w, http.StatusOK, "OK", data)
}

// handleResolveShortLink is the public token resolver: it validates the
// token and 302-redirects to the frontend bill or invoice page.
func (a *API) handleResolveShortLink(w http.ResponseWriter, r *http.Request) {
	tok := mux.Vars(r)["token"]

	res, err := a.tokens.Resolve(r.Context(), tok)
	if err != nil {
		metrics.TokenResolutions.WithLabelValues("rejected").Inc()
		respondServiceError(w, err)
		return
	}
	metrics.TokenResolutions.WithLabelValues("ok").Inc()

	var target string
	switch res.Type {
	case models.TokenOwner:
		target = fmt.Sprintf("%s/app/splitbill/%s", a.frontendBase, res.BillID)
	case models.TokenMember:
		target = fmt.Sprintf("%s/app/splitbill/%s/member/%s", a.frontendBase, res.BillID, res.MemberID)
	default:
		respondError(w, http.StatusBadRequest, "unknown token type")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeStatus := "UP"
	healthy := true
	if err := a.store.Ping(r.Context()); err != nil {
		storeStatus = "DOWN"
		healthy = false
	}
	busStatus := "UP"
	if a.bus != nil && !a.bus.Healthy() {
		busStatus = "DOWN"
		healthy = false
	}

	status := http.StatusOK
	overall := "UP"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "DOWN"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"components": map[string]any{
			"store": map[string]string{"status": storeStatus},
			"bus":   map[string]string{"status": busStatus},
		},
	})
}
