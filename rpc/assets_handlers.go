package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"collend/native/assets"
)

type assetConfigParams struct {
	Active               bool   `json:"active"`
	Decimals             uint8  `json:"decimals"`
	Tier                 string `json:"tier"`
	BorrowThreshold      uint64 `json:"borrowThreshold"`
	LiquidationThreshold uint64 `json:"liquidationThreshold"`
	MaxSupply            string `json:"maxSupply"`
	IsolationDebtCap     string `json:"isolationDebtCap"`
	MinimumOracles       uint8  `json:"minimumOracles"`
	PrimaryOracle        string `json:"primaryOracle"`
	Round                struct {
		Source string `json:"source"`
		Active bool   `json:"active"`
	} `json:"round"`
	Twap struct {
		Pool          string `json:"pool"`
		WindowSeconds uint64 `json:"windowSeconds"`
		Active        bool   `json:"active"`
	} `json:"twap"`
}

type assetInfoResult struct {
	Asset  string              `json:"asset"`
	Config *assets.AssetConfig `json:"config"`
	Tier   string              `json:"tier"`
}

func (p assetConfigParams) assetConfig() (*assets.AssetConfig, error) {
	tier, err := assets.ParseTier(p.Tier)
	if err != nil {
		return nil, err
	}
	primary, err := assets.ParseOracleType(p.PrimaryOracle)
	if err != nil {
		return nil, err
	}
	cfg := &assets.AssetConfig{
		Active:               flagOf(p.Active),
		Decimals:             p.Decimals,
		BorrowThreshold:      p.BorrowThreshold,
		LiquidationThreshold: p.LiquidationThreshold,
		MinimumOracles:       p.MinimumOracles,
		PrimaryOracle:        primary,
		Tier:                 tier,
		Round:                assets.RoundOracleConfig{Active: flagOf(p.Round.Active)},
		Twap: assets.TwapConfig{
			WindowSeconds: p.Twap.WindowSeconds,
			Active:        flagOf(p.Twap.Active),
		},
	}
	if cfg.MaxSupplyThreshold, err = parseBigParam(p.MaxSupply); err != nil {
		return nil, err
	}
	if cfg.IsolationDebtCap, err = parseBigParam(p.IsolationDebtCap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Round.Source) != "" {
		source, err := parseAddressParam(json.RawMessage(`"`+p.Round.Source+`"`), "round source")
		if err != nil {
			return nil, err
		}
		cfg.Round.Source = source
	}
	if strings.TrimSpace(p.Twap.Pool) != "" {
		pool, err := parseAddressParam(json.RawMessage(`"`+p.Twap.Pool+`"`), "twap pool")
		if err != nil {
			return nil, err
		}
		cfg.Twap.Pool = pool
	}
	return cfg, nil
}

func (s *Server) handleUpdateAssetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset and config parameters required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var params assetConfigParams
	if err := json.Unmarshal(req.Params[1], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid config payload", err.Error())
		return
	}
	cfg, err := params.assetConfig()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.registry.UpdateAssetConfig(asset, cfg); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleUpdateRoundOracle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameters required", nil)
		return
	}
	var params struct {
		Asset  string `json:"asset"`
		Source string `json:"source"`
		Active bool   `json:"active"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payload", err.Error())
		return
	}
	asset, err := parseAddressParam(json.RawMessage(`"`+params.Asset+`"`), "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	source, err := parseAddressParam(json.RawMessage(`"`+params.Source+`"`), "source")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.registry.UpdateRoundOracle(asset, source, flagOf(params.Active)); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleUpdateUniswapOracle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "parameters required", nil)
		return
	}
	var params struct {
		Asset         string `json:"asset"`
		Pool          string `json:"pool"`
		WindowSeconds uint64 `json:"windowSeconds"`
		Active        bool   `json:"active"`
	}
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payload", err.Error())
		return
	}
	asset, err := parseAddressParam(json.RawMessage(`"`+params.Asset+`"`), "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pool, err := parseAddressParam(json.RawMessage(`"`+params.Pool+`"`), "pool")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.registry.UpdateUniswapOracle(asset, pool, params.WindowSeconds, flagOf(params.Active)); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleUpdateAssetTier(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset and tier parameters required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var tierName string
	if err := json.Unmarshal(req.Params[1], &tierName); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "tier must be a string", err.Error())
		return
	}
	tier, err := assets.ParseTier(tierName)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.registry.UpdateAssetTier(asset, tier); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetAssetInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset parameter required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	cfg, err := s.registry.GetAssetInfo(asset)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, assetInfoResult{Asset: asset.Hex(), Config: cfg, Tier: cfg.Tier.String()})
}

func (s *Server) handleIsAssetValid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset parameter required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, s.registry.IsAssetValid(asset))
}

func (s *Server) handleGetAssetTier(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset parameter required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	tier, err := s.registry.GetAssetTier(asset)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, tier.String())
}

func (s *Server) handleGetIsolationDebtCap(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset parameter required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	cap, err := s.registry.GetIsolationDebtCap(asset)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, cap.String())
}

func (s *Server) handleListAssets(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	listed, err := s.registry.ListAssets()
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	result := make([]string, 0, len(listed))
	for _, addr := range listed {
		result = append(result, addr.Hex())
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleTierRates(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "tier parameter required", nil)
		return
	}
	var tierName string
	if err := json.Unmarshal(req.Params[0], &tierName); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "tier must be a string", err.Error())
		return
	}
	tier, err := assets.ParseTier(tierName)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	rates, err := s.registry.TierRates(tier)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, rates)
}

func (s *Server) handleSetTierRates(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "tier and rates parameters required", nil)
		return
	}
	var tierName string
	if err := json.Unmarshal(req.Params[0], &tierName); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "tier must be a string", err.Error())
		return
	}
	tier, err := assets.ParseTier(tierName)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var rates assets.TierRates
	if err := json.Unmarshal(req.Params[1], &rates); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid rates payload", err.Error())
		return
	}
	if err := s.registry.SetTierRates(tier, rates); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func flagOf(active bool) assets.Flag {
	if active {
		return assets.FlagActive
	}
	return assets.FlagInactive
}

func parseBigParam(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, assets.ErrInvalidParameter
	}
	return amount, nil
}
