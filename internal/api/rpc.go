package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/solana"
)

type endpointRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

type publicKeyRequest struct {
	Endpoint  string `json:"endpoint" validate:"required"`
	PublicKey string `json:"publicKey" validate:"required"`
}

type performanceRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Limit    *int   `json:"limit" validate:"omitnil,min=1,max=720"`
}

type blockRequest struct {
	Endpoint string  `json:"endpoint" validate:"required"`
	Slot     *uint64 `json:"slot" validate:"required"`
}

func (s *Server) registerRPC(g *echo.Group) {
	g.POST("/test", s.TestConnection)
	g.POST("/balance", s.GetBalance)
	g.POST("/account", s.GetAccount)
	g.POST("/blockhash", s.GetBlockhash)
	g.POST("/slot", s.GetSlot)
	g.POST("/epoch", s.GetEpoch)
	g.POST("/performance", s.GetPerformance)
	g.POST("/block", s.GetBlock)
	g.POST("/validators", s.GetValidators)
	g.POST("/cluster-nodes", s.GetClusterNodes)
	g.POST("/supply", s.GetSupply)
}

// rpcFailure reports a failed RPC call as the caller's problem.
func rpcFailure(message string, err error) error {
	return apperror.Remote(http.StatusBadRequest, message, err)
}

// TestConnection checks that an endpoint answers
// (POST /api/rpc/test)
func (s *Server) TestConnection(c echo.Context) error {
	var req endpointRequest
	if err := bind(c, &req, "RPC endpoint is required"); err != nil {
		return err
	}

	fail := func(err error) error {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"connected": false,
			"error":     err.Error(),
			"endpoint":  req.Endpoint,
		})
	}
	client, err := s.Dial(req.Endpoint)
	if err != nil {
		return fail(err)
	}
	ctx := c.Request().Context()
	slot, err := client.GetSlot(ctx)
	if err != nil {
		return fail(err)
	}
	version, err := client.GetVersion(ctx)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"connected": true,
		"slot":      slot,
		"version":   version,
		"endpoint":  client.Endpoint(),
	})
}

// GetBalance returns the SOL balance of an account
// (POST /api/rpc/balance)
func (s *Server) GetBalance(c echo.Context) error {
	var req publicKeyRequest
	if err := bind(c, &req, "Endpoint and publicKey are required"); err != nil {
		return err
	}
	if err := requireKey("publicKey", req.PublicKey); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	lamports, err := client.GetBalance(c.Request().Context(), req.PublicKey)
	if err != nil {
		return rpcFailure("Failed to get balance", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"publicKey": req.PublicKey,
		"lamports":  lamports,
		"sol":       solana.LamportsToSOL(lamports),
	})
}

// GetAccount returns account metadata, or exists=false
// (POST /api/rpc/account)
func (s *Server) GetAccount(c echo.Context) error {
	var req publicKeyRequest
	if err := bind(c, &req, "Endpoint and publicKey are required"); err != nil {
		return err
	}
	if err := requireKey("publicKey", req.PublicKey); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	info, err := client.GetAccountInfo(c.Request().Context(), req.PublicKey)
	if err != nil {
		return rpcFailure("Failed to get account info", err)
	}
	if info == nil {
		return c.JSON(http.StatusOK, map[string]any{"exists": false, "publicKey": req.PublicKey})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"exists":     true,
		"publicKey":  req.PublicKey,
		"lamports":   info.Lamports,
		"owner":      info.Owner,
		"executable": info.Executable,
		"rentEpoch":  info.RentEpoch,
		"dataLength": dataLength(info),
	})
}

// GetBlockhash returns the latest blockhash
// (POST /api/rpc/blockhash)
func (s *Server) GetBlockhash(c echo.Context) error {
	var req endpointRequest
	if err := bind(c, &req, "Endpoint is required"); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	hash, err := client.GetLatestBlockhash(c.Request().Context())
	if err != nil {
		return rpcFailure("Failed to get blockhash", err)
	}
	return c.JSON(http.StatusOK, hash)
}

// GetSlot returns the current slot and block height
// (POST /api/rpc/slot)
func (s *Server) GetSlot(c echo.Context) error {
	var req endpointRequest
	if err := bind(c, &req, "Endpoint is required"); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	slot, err := client.GetSlot(ctx)
	if err != nil {
		return rpcFailure("Failed to get slot", err)
	}
	height, err := client.GetBlockHeight(ctx)
	if err != nil {
		return rpcFailure("Failed to get slot", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"slot": slot, "blockHeight": height})
}

// GetEpoch returns the current epoch
// (POST /api/rpc/epoch)
func (s *Server) GetEpoch(c echo.Context) error {
	var req endpointRequest
	if err := bind(c, &req, "Endpoint is required"); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	info, err := client.GetEpochInfo(c.Request().Context())
	if err != nil {
		return rpcFailure("Failed to get epoch info", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"epoch":            info.Epoch,
		"slotIndex":        info.SlotIndex,
		"slotsInEpoch":     info.SlotsInEpoch,
		"absoluteSlot":     info.AbsoluteSlot,
		"blockHeight":      info.BlockHeight,
		"transactionCount": info.TransactionCount,
	})
}

// GetPerformance returns recent performance samples
// (POST /api/rpc/performance)
func (s *Server) GetPerformance(c echo.Context) error {
	var req performanceRequest
	if err := bind(c, &req, "Endpoint is required"); err != nil {
		return err
	}
	limit := 10
	if req.Limit != nil {
		limit = *req.Limit
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	samples, err := client.GetRecentPerformanceSamples(c.Request().Context(), limit)
	if err != nil {
		return rpcFailure("Failed to get performance samples", err)
	}

	out := make([]map[string]any, 0, len(samples))
	for _, sample := range samples {
		out = append(out, map[string]any{
			"slot":             sample.Slot,
			"numTransactions":  sample.NumTransactions,
			"numSlots":         sample.NumSlots,
			"samplePeriodSecs": sample.SamplePeriodSecs,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"samples": out, "total": len(out)})
}

// GetBlock returns a block summary
// (POST /api/rpc/block)
func (s *Server) GetBlock(c echo.Context) error {
	var req blockRequest
	if err := bind(c, &req, "Endpoint and slot are required"); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	block, err := client.GetBlock(c.Request().Context(), *req.Slot)
	if errors.Is(err, solana.ErrNullResult) {
		return apperror.NotFound("Block not found")
	}
	if err != nil {
		return rpcFailure("Failed to get block", err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"slot":              *req.Slot,
		"blockhash":         block.Blockhash,
		"previousBlockhash": block.PreviousBlockhash,
		"parentSlot":        block.ParentSlot,
		"blockTime":         block.BlockTime,
		"blockHeight":       block.BlockHeight,
		"transactions":      len(block.Signatures),
	})
}

// GetValidators returns the active vote accounts
// (POST /api/rpc/validators)
func (s *Server) GetValidators(c echo.Context) error {
	var req endpointRequest
	if err := bind(c, &req, "Endpoint is required"); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	accounts, err := client.GetVoteAccounts(c.Request().Context())
	if err != nil {
		return rpcFailure("Failed to get validators", err)
	}

	current := make([]map[string]any, 0, len(accounts.Current))
	for _, v := range accounts.Current {
		current = append(current, map[string]any{
			"votePubkey":       v.VotePubkey,
			"nodePubkey":       v.NodePubkey,
			"activatedStake":   v.ActivatedStake,
			"epochVoteAccount": v.EpochVoteAccount,
			"commission":       v.Commission,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"current":    current,
		"delinquent": len(accounts.Delinquent),
		"total":      len(accounts.Current) + len(accounts.Delinquent),
	})
}

// GetClusterNodes lists the cluster's nodes
// (POST /api/rpc/cluster-nodes)
func (s *Server) GetClusterNodes(c echo.Context) error {
	var req endpointRequest
	if err := bind(c, &req, "Endpoint is required"); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	nodes, err := client.GetClusterNodes(c.Request().Context())
	if err != nil {
		return rpcFailure("Failed to get cluster nodes", err)
	}

	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, map[string]any{
			"pubkey":  n.Pubkey,
			"gossip":  n.Gossip,
			"tpu":     n.TPU,
			"rpc":     n.RPC,
			"version": n.Version,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"nodes": out, "total": len(out)})
}

// GetSupply returns the SOL supply
// (POST /api/rpc/supply)
func (s *Server) GetSupply(c echo.Context) error {
	var req endpointRequest
	if err := bind(c, &req, "Endpoint is required"); err != nil {
		return err
	}
	client, err := s.dial(req.Endpoint)
	if err != nil {
		return err
	}
	supply, err := client.GetSupply(c.Request().Context())
	if err != nil {
		return rpcFailure("Failed to get supply", err)
	}
	accounts := supply.NonCirculatingAccounts
	if accounts == nil {
		accounts = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"total":                  supply.Total,
		"circulating":            supply.Circulating,
		"nonCirculating":         supply.NonCirculating,
		"nonCirculatingAccounts": accounts,
	})
}
