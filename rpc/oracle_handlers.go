package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"collend/native/assets"
	"collend/native/oracle"
	"collend/observability"
)

type priceResult struct {
	Asset    string `json:"asset"`
	Price    string `json:"price"`
	Decimals uint8  `json:"decimals"`
}

type deviationResult struct {
	Asset            string `json:"asset"`
	HasDeviation     bool   `json:"hasDeviation"`
	DeviationPercent string `json:"deviationPercent"`
}

type breakerResult struct {
	Asset            string `json:"asset"`
	Broken           bool   `json:"broken"`
	DeviationPercent string `json:"deviationPercent,omitempty"`
}

type oracleConfigResult struct {
	FreshnessSeconds        uint64 `json:"freshnessSeconds"`
	VolatilityWindowSeconds uint64 `json:"volatilityWindowSeconds"`
	VolatilityPercent       uint64 `json:"volatilityPercent"`
	CircuitBreakerPercent   uint64 `json:"circuitBreakerPercent"`
}

func (s *Server) handleGetAssetPrice(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset parameter required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := s.engine.GetAssetPrice(r.Context(), asset)
	recordPriceRead("aggregate", err)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, priceResult{Asset: asset.Hex(), Price: price.String(), Decimals: oracle.PriceDecimals})
}

// recordPriceRead feeds the oracle metrics, classifying adapter failures by
// their sentinel.
func recordPriceRead(source string, err error) {
	metrics := observability.Oracle()
	metrics.RecordPriceRead(source, err)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, oracle.ErrStalePrice):
		metrics.RecordAdapterFailure(source, "stale")
	case errors.Is(err, oracle.ErrTimeout):
		metrics.RecordAdapterFailure(source, "timeout")
	case errors.Is(err, oracle.ErrPriceVolatility):
		metrics.RecordAdapterFailure(source, "volatility")
	case errors.Is(err, oracle.ErrInvalidPrice):
		metrics.RecordAdapterFailure(source, "invalid_price")
	case errors.Is(err, oracle.ErrNoTickMovement):
		metrics.RecordAdapterFailure(source, "no_tick_movement")
	case errors.Is(err, oracle.ErrOracleNotConfigured):
		metrics.RecordAdapterFailure(source, "not_configured")
	}
}

func (s *Server) handleGetAssetPriceByType(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) < 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset and oracleType parameters required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var typeName string
	if err := json.Unmarshal(req.Params[1], &typeName); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "oracleType must be a string", err.Error())
		return
	}
	oracleType, err := assets.ParseOracleType(typeName)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := s.engine.GetAssetPriceByType(r.Context(), asset, oracleType)
	recordPriceRead(oracleType.String(), err)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, priceResult{Asset: asset.Hex(), Price: price.String(), Decimals: oracle.PriceDecimals})
}

func (s *Server) handleCheckPriceDeviation(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset parameter required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	hasDeviation, deviation, err := s.engine.CheckPriceDeviation(r.Context(), asset)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, deviationResult{
		Asset:            asset.Hex(),
		HasDeviation:     hasDeviation,
		DeviationPercent: deviation.String(),
	})
}

func (s *Server) handleEvaluateCircuitBreaker(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset parameter required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	broken, deviation, err := s.engine.EvaluateCircuitBreaker(r.Context(), asset)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	result := breakerResult{Asset: asset.Hex(), Broken: broken}
	if deviation != nil {
		result.DeviationPercent = deviation.String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleCircuitBroken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "asset parameter required", nil)
		return
	}
	asset, err := parseAddressParam(req.Params[0], "asset")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	broken, err := s.engine.CircuitBroken(asset)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, breakerResult{Asset: asset.Hex(), Broken: broken})
}

func (s *Server) handleOracleGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	cfg := s.engine.CurrentConfig()
	writeResult(w, req.ID, oracleConfigResult{
		FreshnessSeconds:        uint64(cfg.FreshnessThreshold / time.Second),
		VolatilityWindowSeconds: uint64(cfg.VolatilityWindow / time.Second),
		VolatilityPercent:       cfg.VolatilityPercent,
		CircuitBreakerPercent:   cfg.CircuitBreakerPercent,
	})
}

func (s *Server) handleOracleUpdateConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "config parameter required", nil)
		return
	}
	var params oracleConfigResult
	if err := json.Unmarshal(req.Params[0], &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid config payload", err.Error())
		return
	}
	cfg := oracle.Config{
		FreshnessThreshold:    time.Duration(params.FreshnessSeconds) * time.Second,
		VolatilityWindow:      time.Duration(params.VolatilityWindowSeconds) * time.Second,
		VolatilityPercent:     params.VolatilityPercent,
		CircuitBreakerPercent: params.CircuitBreakerPercent,
	}
	if err := s.engine.UpdateConfig(cfg); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}
