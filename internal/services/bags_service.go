package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/cache"
	"solflow/backend/internal/logging"
)

// BondingCurveStatus summarises where a token stands on its launch curve.
type BondingCurveStatus struct {
	TokenAddress         string  `json:"tokenAddress"`
	IsMigrated           bool    `json:"isMigrated"`
	MarketCap            float64 `json:"marketCap"`
	BondingCurveProgress float64 `json:"bondingCurveProgress"`
	LiquidityPool        any     `json:"liquidityPool"`
	CanMigrate           bool    `json:"canMigrate"`
	Holders              int64   `json:"holders"`
	Volume24h            float64 `json:"volume24h"`
}

// TokenInfo is the launch metadata of a token.
type TokenInfo struct {
	Address              string `json:"address"`
	Name                 any    `json:"name"`
	Symbol               any    `json:"symbol"`
	Description          any    `json:"description"`
	Image                any    `json:"image"`
	Creator              any    `json:"creator"`
	MarketCap            any    `json:"marketCap"`
	Price                any    `json:"price"`
	Volume24h            any    `json:"volume24h"`
	BondingCurveProgress any    `json:"bondingCurveProgress"`
	Migrated             any    `json:"migrated"`
	CreatedAt            any    `json:"createdAt"`
}

// MigrationStatus reports whether a token can move to a liquidity pool.
type MigrationStatus struct {
	TokenAddress           string  `json:"tokenAddress"`
	Ready                  bool    `json:"ready"`
	AlreadyMigrated        bool    `json:"alreadyMigrated"`
	Progress               float64 `json:"progress"`
	RemainingProgress      float64 `json:"remainingProgress"`
	MarketCap              any     `json:"marketCap"`
	EstimatedLiquidityPool any     `json:"estimatedLiquidityPool"`
	Message                string  `json:"message"`
}

// TrendingTokens is a page of trending tokens.
type TrendingTokens struct {
	Tokens any   `json:"tokens"`
	Total  int64 `json:"total"`
}

// PriceQuote is a bonding-curve price for buying amount of a token.
type PriceQuote struct {
	TokenAddress  string  `json:"tokenAddress"`
	InputAmount   float64 `json:"inputAmount"`
	OutputAmount  any     `json:"outputAmount"`
	PricePerToken any     `json:"pricePerToken"`
	PriceImpact   any     `json:"priceImpact"`
	Fees          any     `json:"fees"`
}

// BagsService reads token launch data from the Bags public API.
type BagsService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      cache.Cache
	logger     *logging.Logger
}

// NewBagsService creates a new BagsService. apiKey is used when a request
// does not bring its own; tokenCache may be nil.
func NewBagsService(baseURL, apiKey string, timeout time.Duration, tokenCache cache.Cache, logger *logging.Logger) *BagsService {
	if tokenCache == nil {
		tokenCache = cache.Nop{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &BagsService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      tokenCache,
		logger:     logger,
	}
}

// BondingCurveStatus returns the curve progress of tokenAddress.
func (s *BagsService) BondingCurveStatus(ctx context.Context, tokenAddress, apiKey string) (*BondingCurveStatus, error) {
	token, err := s.token(ctx, tokenAddress, apiKey, "Failed to fetch token info from Bags")
	if err != nil {
		return nil, err
	}
	progress := token.Get("bondingCurveProgress").Float()
	return &BondingCurveStatus{
		TokenAddress:         tokenAddress,
		IsMigrated:           token.Get("migrated").Bool(),
		MarketCap:            token.Get("marketCap").Float(),
		BondingCurveProgress: progress,
		LiquidityPool:        token.Get("liquidityPool").Value(),
		CanMigrate:           progress >= 100,
		Holders:              token.Get("holders").Int(),
		Volume24h:            token.Get("volume24h").Float(),
	}, nil
}

// TokenInfo returns the launch metadata of tokenAddress.
func (s *BagsService) TokenInfo(ctx context.Context, tokenAddress, apiKey string) (*TokenInfo, error) {
	token, err := s.token(ctx, tokenAddress, apiKey, "Failed to fetch token from Bags")
	if err != nil {
		return nil, err
	}
	return &TokenInfo{
		Address:              tokenAddress,
		Name:                 token.Get("name").Value(),
		Symbol:               token.Get("symbol").Value(),
		Description:          token.Get("description").Value(),
		Image:                token.Get("image").Value(),
		Creator:              token.Get("creator").Value(),
		MarketCap:            token.Get("marketCap").Value(),
		Price:                token.Get("price").Value(),
		Volume24h:            token.Get("volume24h").Value(),
		BondingCurveProgress: token.Get("bondingCurveProgress").Value(),
		Migrated:             token.Get("migrated").Value(),
		CreatedAt:            token.Get("createdAt").Value(),
	}, nil
}

// MigrationCheck reports whether tokenAddress has completed its curve.
func (s *BagsService) MigrationCheck(ctx context.Context, tokenAddress, apiKey string) (*MigrationStatus, error) {
	token, err := s.token(ctx, tokenAddress, apiKey, "Failed to fetch token from Bags")
	if err != nil {
		return nil, err
	}
	migrated := token.Get("migrated").Bool()
	progress := token.Get("bondingCurveProgress").Float()

	var message string
	switch {
	case migrated:
		message = "Token already migrated to liquidity pool"
	case progress >= 100:
		message = "Token is ready for migration!"
	default:
		message = fmt.Sprintf("%.2f%% remaining to complete bonding curve", 100-progress)
	}

	return &MigrationStatus{
		TokenAddress:           tokenAddress,
		Ready:                  progress >= 100 && !migrated,
		AlreadyMigrated:        migrated,
		Progress:               progress,
		RemainingProgress:      max(0, 100-progress),
		MarketCap:              token.Get("marketCap").Value(),
		EstimatedLiquidityPool: token.Get("estimatedLiquidityPool").Value(),
		Message:                message,
	}, nil
}

// Trending returns up to limit trending tokens.
func (s *BagsService) Trending(ctx context.Context, limit int, apiKey string) (*TrendingTokens, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	body, err := s.get(ctx, "/tokens/trending?"+q.Encode(), apiKey)
	if err != nil {
		return nil, apperror.Remote(http.StatusInternalServerError, "Failed to fetch trending tokens", err)
	}
	data := gjson.ParseBytes(body)
	tokens := data.Get("tokens").Value()
	if tokens == nil {
		tokens = []any{}
	}
	return &TrendingTokens{Tokens: tokens, Total: data.Get("total").Int()}, nil
}

// CalculatePrice quotes buying amount of tokenAddress on its curve.
func (s *BagsService) CalculatePrice(ctx context.Context, tokenAddress string, amount float64, apiKey string) (*PriceQuote, error) {
	if tokenAddress == "" || amount <= 0 {
		return nil, apperror.Validation("Token address and amount are required")
	}
	q := url.Values{"amount": {strconv.FormatFloat(amount, 'f', -1, 64)}}
	body, err := s.get(ctx, "/tokens/"+url.PathEscape(tokenAddress)+"/quote?"+q.Encode(), apiKey)
	if err != nil {
		return nil, apperror.Remote(http.StatusInternalServerError, "Failed to get price quote", err)
	}
	data := gjson.ParseBytes(body)
	return &PriceQuote{
		TokenAddress:  tokenAddress,
		InputAmount:   amount,
		OutputAmount:  data.Get("outputAmount").Value(),
		PricePerToken: data.Get("pricePerToken").Value(),
		PriceImpact:   data.Get("priceImpact").Value(),
		Fees:          data.Get("fees").Value(),
	}, nil
}

// token fetches the token document, serving repeated lookups from the cache.
func (s *BagsService) token(ctx context.Context, tokenAddress, apiKey, failure string) (gjson.Result, error) {
	if tokenAddress == "" {
		return gjson.Result{}, apperror.Validation("Token address is required")
	}

	// Lookups made with a caller-supplied key never touch the cache.
	cacheable := apiKey == "" || apiKey == s.apiKey
	key := "bags:token:" + tokenAddress
	if cacheable {
		if cached, ok, err := s.cache.Get(ctx, key); err != nil {
			s.logger.Warn("token cache read failed", "token", tokenAddress, "error", err)
		} else if ok {
			return gjson.ParseBytes(cached), nil
		}
	}

	body, err := s.get(ctx, "/tokens/"+url.PathEscape(tokenAddress), apiKey)
	if err != nil {
		return gjson.Result{}, apperror.Remote(http.StatusInternalServerError, failure, err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, apperror.Remote(http.StatusInternalServerError, failure, fmt.Errorf("malformed response"))
	}
	if cacheable {
		if err := s.cache.Set(ctx, key, body); err != nil {
			s.logger.Warn("token cache write failed", "token", tokenAddress, "error", err)
		}
	}
	return gjson.ParseBytes(body), nil
}

func (s *BagsService) get(ctx context.Context, path, apiKey string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey == "" {
		apiKey = s.apiKey
	}
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status code %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
