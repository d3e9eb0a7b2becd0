package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"

	"solflow/backend/internal/solana"
)

type tokenBalanceRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Owner    string `json:"owner" validate:"required"`
	Mint     string `json:"mint"`
}

type tokenSupplyRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Mint     string `json:"mint" validate:"required"`
}

type tokenAccountsRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Owner    string `json:"owner" validate:"required"`
}

func (s *Server) registerTokens(g *echo.Group) {
	g.POST("/balance", s.GetTokenBalance)
	g.POST("/supply", s.GetTokenSupply)
	g.POST("/accounts", s.GetTokenAccounts)
}

// parsedInfo looks up a field of a jsonParsed token account; absent fields are nil.
func parsedInfo(acc solana.ParsedKeyedAccount, path string) any {
	return gjson.GetBytes(acc.Account.Data, "parsed.info."+path).Value()
}

// GetTokenBalance sums the balance of one mint, or lists every token held
// (POST /api/tokens/balance)
func (s *Server) GetTokenBalance(c echo.Context) error {
	var req tokenBalanceRequest
	if err := bind(c, &req, "Endpoint and owner are required"); err != nil {
		return err
	}
	if err := requireKey("owner", req.Owner); err != nil {
		return err
	}
	if req.Mint != "" {
		if err := requireKey("mint", req.Mint); err != nil {
			return err
		}
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}

	accounts, err := client.GetTokenAccountsByOwner(c.Request().Context(), req.Owner,
		solana.TokenAccountFilter{Mint: req.Mint})
	if err != nil {
		return rpcFailure("Failed to get token balance", err)
	}

	if req.Mint != "" {
		var balance float64
		for _, acc := range accounts {
			balance += gjson.GetBytes(acc.Account.Data, "parsed.info.tokenAmount.uiAmount").Float()
		}
		return c.JSON(http.StatusOK, map[string]any{
			"owner":    req.Owner,
			"mint":     req.Mint,
			"balance":  balance,
			"accounts": len(accounts),
		})
	}

	tokens := make([]map[string]any, 0, len(accounts))
	for _, acc := range accounts {
		tokens = append(tokens, map[string]any{
			"mint":     parsedInfo(acc, "mint"),
			"balance":  parsedInfo(acc, "tokenAmount.uiAmount"),
			"decimals": parsedInfo(acc, "tokenAmount.decimals"),
			"address":  acc.Pubkey,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"owner":  req.Owner,
		"tokens": tokens,
		"total":  len(tokens),
	})
}

// GetTokenSupply returns a mint's total supply
// (POST /api/tokens/supply)
func (s *Server) GetTokenSupply(c echo.Context) error {
	var req tokenSupplyRequest
	if err := bind(c, &req, "Endpoint and mint are required"); err != nil {
		return err
	}
	if err := requireKey("mint", req.Mint); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	supply, err := client.GetTokenSupply(c.Request().Context(), req.Mint)
	if err != nil {
		return rpcFailure("Failed to get token supply", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"mint":     req.Mint,
		"amount":   supply.Amount,
		"decimals": supply.Decimals,
		"uiAmount": supply.UIAmount,
	})
}

// GetTokenAccounts lists an owner's SPL token accounts
// (POST /api/tokens/accounts)
func (s *Server) GetTokenAccounts(c echo.Context) error {
	var req tokenAccountsRequest
	if err := bind(c, &req, "Endpoint and owner are required"); err != nil {
		return err
	}
	if err := requireKey("owner", req.Owner); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	accounts, err := client.GetTokenAccountsByOwner(c.Request().Context(), req.Owner, solana.TokenAccountFilter{})
	if err != nil {
		return rpcFailure("Failed to get token accounts", err)
	}

	out := make([]map[string]any, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, map[string]any{
			"address":  acc.Pubkey,
			"mint":     parsedInfo(acc, "mint"),
			"owner":    parsedInfo(acc, "owner"),
			"amount":   parsedInfo(acc, "tokenAmount.amount"),
			"decimals": parsedInfo(acc, "tokenAmount.decimals"),
			"uiAmount": parsedInfo(acc, "tokenAmount.uiAmount"),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"owner":    req.Owner,
		"accounts": out,
		"total":    len(out),
	})
}
