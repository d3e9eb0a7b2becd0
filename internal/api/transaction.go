package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/solana"
)

const maxRecentSignatures = 100

type signatureRequest struct {
	Endpoint  string `json:"endpoint" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type recentRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Address  string `json:"address" validate:"required"`
	Limit    *int   `json:"limit" validate:"omitnil,min=1"`
}

type simulateRequest struct {
	Endpoint    string `json:"endpoint" validate:"required"`
	Transaction string `json:"transaction" validate:"required"`
}

func (s *Server) registerTransactions(g *echo.Group) {
	g.POST("/get", s.GetTransaction)
	g.POST("/status", s.GetTransactionStatus)
	g.POST("/recent", s.GetRecentTransactions)
	g.POST("/simulate", s.SimulateTransaction)
}

// rawField returns the JSON at path unchanged, or nil when absent.
func rawField(doc []byte, path string) json.RawMessage {
	res := gjson.GetBytes(doc, path)
	if !res.Exists() {
		return nil
	}
	return json.RawMessage(res.Raw)
}

func requireSignature(value string) error {
	if !solana.IsSignature(value) {
		return apperror.Validation("Invalid transaction signature",
			apperror.FieldError{Path: "signature", Message: "must be a base58 encoded signature"})
	}
	return nil
}

// GetTransaction returns a confirmed transaction
// (POST /api/transactions/get)
func (s *Server) GetTransaction(c echo.Context) error {
	var req signatureRequest
	if err := bind(c, &req, "Endpoint and signature are required"); err != nil {
		return err
	}
	if err := requireSignature(req.Signature); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	tx, err := client.GetTransaction(c.Request().Context(), req.Signature)
	if errors.Is(err, solana.ErrNullResult) {
		return apperror.NotFound("Transaction not found")
	}
	if err != nil {
		return rpcFailure("Failed to get transaction", err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"signature": req.Signature,
		"slot":      gjson.GetBytes(tx, "slot").Uint(),
		"blockTime": rawField(tx, "blockTime"),
		"meta": map[string]any{
			"err":          rawField(tx, "meta.err"),
			"fee":          rawField(tx, "meta.fee"),
			"preBalances":  rawField(tx, "meta.preBalances"),
			"postBalances": rawField(tx, "meta.postBalances"),
			"logMessages":  rawField(tx, "meta.logMessages"),
		},
		"transaction": rawField(tx, "transaction"),
	})
}

// GetTransactionStatus returns the confirmation status of a signature
// (POST /api/transactions/status)
func (s *Server) GetTransactionStatus(c echo.Context) error {
	var req signatureRequest
	if err := bind(c, &req, "Endpoint and signature are required"); err != nil {
		return err
	}
	if err := requireSignature(req.Signature); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	status, err := client.GetSignatureStatus(c.Request().Context(), req.Signature)
	if err != nil {
		return rpcFailure("Failed to get transaction status", err)
	}

	out := map[string]any{
		"signature":          req.Signature,
		"confirmationStatus": nil,
		"confirmations":      nil,
		"err":                nil,
		"slot":               nil,
	}
	if status != nil {
		out["confirmationStatus"] = status.ConfirmationStatus
		out["confirmations"] = status.Confirmations
		out["err"] = status.Err
		out["slot"] = status.Slot
	}
	return c.JSON(http.StatusOK, out)
}

// GetRecentTransactions lists recent signatures for an address
// (POST /api/transactions/recent)
func (s *Server) GetRecentTransactions(c echo.Context) error {
	var req recentRequest
	if err := bind(c, &req, "Endpoint and address are required"); err != nil {
		return err
	}
	if err := requireKey("address", req.Address); err != nil {
		return err
	}
	limit := 10
	if req.Limit != nil {
		limit = min(*req.Limit, maxRecentSignatures)
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	sigs, err := client.GetSignaturesForAddress(c.Request().Context(), req.Address, limit)
	if err != nil {
		return rpcFailure("Failed to get recent transactions", err)
	}

	out := make([]map[string]any, 0, len(sigs))
	for _, sig := range sigs {
		out = append(out, map[string]any{
			"signature": sig.Signature,
			"slot":      sig.Slot,
			"blockTime": sig.BlockTime,
			"err":       sig.Err,
			"memo":      sig.Memo,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"address":    req.Address,
		"signatures": out,
		"total":      len(out),
	})
}

// SimulateTransaction dry-runs a serialized transaction
// (POST /api/transactions/simulate)
func (s *Server) SimulateTransaction(c echo.Context) error {
	var req simulateRequest
	if err := bind(c, &req, "Endpoint and transaction are required"); err != nil {
		return err
	}
	if _, err := base64.StdEncoding.DecodeString(req.Transaction); err != nil {
		return apperror.Validation("Invalid transaction encoding",
			apperror.FieldError{Path: "transaction", Message: "must be base64 encoded"})
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	result, err := client.SimulateTransaction(c.Request().Context(), req.Transaction)
	if err != nil {
		return rpcFailure("Failed to simulate transaction", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"value": map[string]any{
			"err":           result.Err,
			"logs":          result.Logs,
			"unitsConsumed": result.UnitsConsumed,
			"accounts":      result.Accounts,
		},
	})
}
