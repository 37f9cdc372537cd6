package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"multigateway-api/middleware"
	"multigateway-api/models"
	"multigateway-api/services/billing"
	"multigateway-api/types"
	"multigateway-api/utils"
)

const maxBodyBytes = 1 << 20

type TransactionHandler struct {
	billing *billing.Service
	logger  *zap.Logger
}

func NewTransactionHandler(svc *billing.Service, logger *zap.Logger) *TransactionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionHandler{
		billing: svc,
		logger:  logger.With(zap.String("component", "transactions_handler")),
	}
}

// transactionRequest is the JSON body of POST /api/gateways/{gateway}/{action}.
// Option fields such as order_id and currency sit at the top level.
type transactionRequest struct {
	Amount        int64              `json:"amount"`
	Card          *models.CreditCard `json:"card,omitempty"`
	Token         string             `json:"token,omitempty"`
	Authorization string             `json:"authorization,omitempty"`
	Async         bool               `json:"async,omitempty"`
	types.TransactionOptions
}

func (t *transactionRequest) toBilling(gateway string, action models.Action, idempotencyKey string) (billing.Request, error) {
	req := billing.Request{
		Gateway:        gateway,
		Action:         action,
		Amount:         t.Amount,
		Authorization:  t.Authorization,
		IdempotencyKey: idempotencyKey,
	}
	opts := t.TransactionOptions
	req.Options = &opts

	switch {
	case t.Card != nil && t.Token != "":
		return req, fmt.Errorf("card and token are mutually exclusive")
	case t.Card != nil:
		req.Source = t.Card
	case t.Token != "":
		req.Source = models.StoredToken(t.Token)
	}
	return req, nil
}

// Process runs one gateway verb. Declines return 200 with success false in
// the response; only failures to reach a verdict use error statuses.
func (h *TransactionHandler) Process(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	gateway := vars["gateway"]
	action := models.Action(vars["action"])

	if !action.IsValid() {
		utils.SendErrorResponse(w, http.StatusNotFound, fmt.Sprintf("Unknown action %q", action))
		return
	}
	if !middleware.GatewayAllowed(r.Context(), gateway) {
		utils.SendErrorResponse(w, http.StatusForbidden, "Gateway not allowed for this merchant")
		return
	}

	var body transactionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := body.toBilling(gateway, action, r.Header.Get("Idempotency-Key"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if merchant := middleware.GetMerchant(r.Context()); merchant != nil {
		req.MerchantID = merchant.ID
	}

	if body.Async {
		job, err := h.billing.Enqueue(r.Context(), req)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		utils.SendJSON(w, http.StatusAccepted, models.APIResponse{
			Status:  "queued",
			Message: fmt.Sprintf("%s queued", action),
			Data:    map[string]string{"job_id": job.ID},
		})
		return
	}

	result, err := h.billing.Execute(r.Context(), req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	if result.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	status := "success"
	if !result.Response.Success {
		status = "declined"
	}
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  status,
		Message: result.Response.Message,
		Data:    result,
	})
}

func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.billing.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if !middleware.GatewayAllowed(r.Context(), tx.Gateway) {
		utils.SendErrorResponse(w, http.StatusNotFound, "Transaction not found")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Transaction retrieved",
		Data:    tx,
	})
}

// ListTransactions supports gateway, order_id and limit query parameters.
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.TransactionFilter{
		Gateway: q.Get("gateway"),
		OrderID: q.Get("order_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			utils.SendErrorResponse(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if filter.Gateway != "" && !middleware.GatewayAllowed(r.Context(), filter.Gateway) {
		utils.SendErrorResponse(w, http.StatusForbidden, "Gateway not allowed for this merchant")
		return
	}

	txs, err := h.billing.ListTransactions(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	visible := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if middleware.GatewayAllowed(r.Context(), tx.Gateway) {
			visible = append(visible, tx)
		}
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Transactions retrieved",
		Data:    visible,
	})
}
