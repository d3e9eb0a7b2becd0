package api

import (
	"encoding/base64"
	"net/http"

	"github.com/labstack/echo/v4"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/solana"
)

type programAccountsRequest struct {
	Endpoint  string `json:"endpoint" validate:"required"`
	ProgramID string `json:"programId" validate:"required"`
}

type accountSizeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Account  string `json:"account" validate:"required"`
}

func (s *Server) registerPrograms(g *echo.Group) {
	g.POST("/accounts", s.GetProgramAccounts)
	g.POST("/account-size", s.GetAccountSize)
}

// dataLength is the decoded size of the account data.
func dataLength(info *solana.AccountInfo) int {
	if info.Space > 0 {
		return int(info.Space)
	}
	raw, err := base64.StdEncoding.DecodeString(info.DataBase64())
	if err != nil {
		return 0
	}
	return len(raw)
}

// GetProgramAccounts lists the accounts owned by a program
// (POST /api/programs/accounts)
func (s *Server) GetProgramAccounts(c echo.Context) error {
	var req programAccountsRequest
	if err := bind(c, &req, "Endpoint and programId are required"); err != nil {
		return err
	}
	if err := requireKey("programId", req.ProgramID); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	accounts, err := client.GetProgramAccounts(c.Request().Context(), req.ProgramID)
	if err != nil {
		return rpcFailure("Failed to get program accounts", err)
	}

	out := make([]map[string]any, 0, len(accounts))
	for i := range accounts {
		acc := &accounts[i].Account
		out = append(out, map[string]any{
			"pubkey":     accounts[i].Pubkey,
			"owner":      acc.Owner,
			"lamports":   acc.Lamports,
			"executable": acc.Executable,
			"rentEpoch":  acc.RentEpoch,
			"dataLength": dataLength(acc),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"programId": req.ProgramID,
		"accounts":  out,
		"total":     len(out),
	})
}

// GetAccountSize reports the data size of an account
// (POST /api/programs/account-size)
func (s *Server) GetAccountSize(c echo.Context) error {
	var req accountSizeRequest
	if err := bind(c, &req, "Endpoint and account are required"); err != nil {
		return err
	}
	if err := requireKey("account", req.Account); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	info, err := client.GetAccountInfo(c.Request().Context(), req.Account)
	if err != nil {
		return rpcFailure("Failed to get account size", err)
	}
	if info == nil {
		return apperror.NotFound("Account not found")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"account":    req.Account,
		"dataSize":   dataLength(info),
		"owner":      info.Owner,
		"executable": info.Executable,
	})
}
