package api

import (
	"encoding/base64"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"

	"solflow/backend/internal/apperror"
	"solflow/backend/internal/solana"
)

// maxAccountsPerCall is the getMultipleAccounts key limit.
const maxAccountsPerCall = 100

type nftOwnerRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Owner    string `json:"owner" validate:"required"`
}

type nftMintRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Mint     string `json:"mint" validate:"required"`
}

func (s *Server) registerNFTs(g *echo.Group) {
	g.POST("/by-owner", s.GetNFTsByOwner)
	g.POST("/metadata", s.GetNFTMetadata)
}

// nftMints returns the distinct mints of accounts holding exactly one
// indivisible token.
func nftMints(accounts []solana.ParsedKeyedAccount) []string {
	seen := make(map[string]struct{}, len(accounts))
	mints := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		info := gjson.GetBytes(acc.Account.Data, "parsed.info")
		if info.Get("tokenAmount.amount").String() != "1" || info.Get("tokenAmount.decimals").Int() != 0 {
			continue
		}
		mint := info.Get("mint").String()
		if _, dup := seen[mint]; dup || mint == "" {
			continue
		}
		seen[mint] = struct{}{}
		mints = append(mints, mint)
	}
	return mints
}

func decodeMetadataAccount(info *solana.AccountInfo) (*solana.Metadata, error) {
	raw, err := base64.StdEncoding.DecodeString(info.DataBase64())
	if err != nil {
		return nil, err
	}
	return solana.DecodeMetadata(raw)
}

func collectionAddress(m *solana.Metadata) any {
	if m.Collection == nil {
		return nil
	}
	return m.Collection.Address
}

// GetNFTsByOwner lists the NFTs held by a wallet with their on-chain metadata
// (POST /api/nft/by-owner)
func (s *Server) GetNFTsByOwner(c echo.Context) error {
	var req nftOwnerRequest
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
	ctx := c.Request().Context()

	accounts, err := client.GetTokenAccountsByOwner(ctx, req.Owner, solana.TokenAccountFilter{})
	if err != nil {
		return rpcFailure("Failed to get NFTs", err)
	}
	mints := nftMints(accounts)

	nfts := make([]map[string]any, 0, len(mints))
	for start := 0; start < len(mints); start += maxAccountsPerCall {
		batch := mints[start:min(start+maxAccountsPerCall, len(mints))]
		addrs := make([]string, len(batch))
		for i, mint := range batch {
			if addrs[i], err = solana.MetadataAddress(mint); err != nil {
				return rpcFailure("Failed to get NFTs", err)
			}
		}
		infos, err := client.GetMultipleAccounts(ctx, addrs)
		if err != nil {
			return rpcFailure("Failed to get NFTs", err)
		}
		for i, info := range infos {
			if info == nil {
				continue
			}
			m, err := decodeMetadataAccount(info)
			if err != nil {
				s.Logger.Debug("skipping undecodable metadata", "mint", batch[i], "error", err)
				continue
			}
			nfts = append(nfts, map[string]any{
				"mint":                 batch[i],
				"name":                 m.Name,
				"symbol":               m.Symbol,
				"uri":                  m.URI,
				"sellerFeeBasisPoints": m.SellerFeeBasisPoints,
				"updateAuthority":      m.UpdateAuthority,
				"collection":           collectionAddress(m),
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"owner": req.Owner,
		"nfts":  nfts,
		"total": len(nfts),
	})
}

// GetNFTMetadata returns the on-chain metadata of one mint
// (POST /api/nft/metadata)
func (s *Server) GetNFTMetadata(c echo.Context) error {
	var req nftMintRequest
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
	addr, err := solana.MetadataAddress(req.Mint)
	if err != nil {
		return rpcFailure("Failed to get NFT metadata", err)
	}
	info, err := client.GetAccountInfo(c.Request().Context(), addr)
	if err != nil {
		return rpcFailure("Failed to get NFT metadata", err)
	}
	if info == nil {
		return apperror.NotFound("NFT metadata not found")
	}
	m, err := decodeMetadataAccount(info)
	if err != nil {
		return rpcFailure("Failed to get NFT metadata", err)
	}

	creators := m.Creators
	if creators == nil {
		creators = []solana.Creator{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"mint":                 req.Mint,
		"name":                 m.Name,
		"symbol":               m.Symbol,
		"uri":                  m.URI,
		"sellerFeeBasisPoints": m.SellerFeeBasisPoints,
		"creators":             creators,
		"collection":           m.Collection,
		"updateAuthority":      m.UpdateAuthority,
		"isMutable":            m.IsMutable,
	})
}
