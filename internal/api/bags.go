package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type bagsTokenRequest struct {
	TokenAddress string `json:"tokenAddress" validate:"required"`
	APIKey       string `json:"apiKey"`
}

type bagsTrendingRequest struct {
	Limit  *int   `json:"limit" validate:"omitnil,min=1,max=100"`
	APIKey string `json:"apiKey"`
}

type bagsPriceRequest struct {
	TokenAddress string  `json:"tokenAddress" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	APIKey       string  `json:"apiKey"`
}

func (s *Server) registerBags(g *echo.Group) {
	g.POST("/bonding-curve/status", s.GetBondingCurveStatus)
	g.POST("/token/info", s.GetBagsTokenInfo)
	g.POST("/migration/check", s.CheckMigration)
	g.POST("/trending", s.GetTrendingTokens)
	g.POST("/calculate-price", s.CalculateTokenPrice)
}

// GetBondingCurveStatus (POST /api/bags/bonding-curve/status)
func (s *Server) GetBondingCurveStatus(c echo.Context) error {
	var req bagsTokenRequest
	if err := bind(c, &req, "Token address is required"); err != nil {
		return err
	}
	status, err := s.Bags.BondingCurveStatus(c.Request().Context(), req.TokenAddress, req.APIKey)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// GetBagsTokenInfo (POST /api/bags/token/info)
func (s *Server) GetBagsTokenInfo(c echo.Context) error {
	var req bagsTokenRequest
	if err := bind(c, &req, "Token address is required"); err != nil {
		return err
	}
	info, err := s.Bags.TokenInfo(c.Request().Context(), req.TokenAddress, req.APIKey)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// CheckMigration (POST /api/bags/migration/check)
func (s *Server) CheckMigration(c echo.Context) error {
	var req bagsTokenRequest
	if err := bind(c, &req, "Token address is required"); err != nil {
		return err
	}
	status, err := s.Bags.MigrationCheck(c.Request().Context(), req.TokenAddress, req.APIKey)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, status)
}

// GetTrendingTokens (POST /api/bags/trending)
func (s *Server) GetTrendingTokens(c echo.Context) error {
	var req bagsTrendingRequest
	if err := bind(c, &req, "Invalid limit"); err != nil {
		return err
	}
	limit := 10
	if req.Limit != nil {
		limit = *req.Limit
	}
	tokens, err := s.Bags.Trending(c.Request().Context(), limit, req.APIKey)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokens)
}

// CalculateTokenPrice (POST /api/bags/calculate-price)
func (s *Server) CalculateTokenPrice(c echo.Context) error {
	var req bagsPriceRequest
	if err := bind(c, &req, "Token address and amount are required"); err != nil {
		return err
	}
	quote, err := s.Bags.CalculatePrice(c.Request().Context(), req.TokenAddress, req.Amount, req.APIKey)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, quote)
}
