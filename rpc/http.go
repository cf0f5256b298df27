package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"collend/native/assets"
	nativecommon "collend/native/common"
	"collend/native/oracle"
	"collend/native/upgrade"
	"collend/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeAssetNotListed = -32030
	codeOracleFailure  = -32031
	codeBreakerOpen    = -32032
	codeModulePaused   = -32033
)

type Server struct {
	registry *assets.Registry
	engine   *oracle.Engine
	timelock *upgrade.Timelock

	authToken string
	logger    *slog.Logger
}

func NewServer(registry *assets.Registry, engine *oracle.Engine, timelock *upgrade.Timelock) *Server {
	token := strings.TrimSpace(os.Getenv("COLLEND_RPC_TOKEN"))
	return &Server{
		registry:  registry,
		engine:    engine,
		timelock:  timelock,
		authToken: token,
		logger:    slog.Default(),
	}
}

func (s *Server) SetLogger(logger *slog.Logger) {
	if s == nil || logger == nil {
		return
	}
	s.logger = logger
}

// Router builds the HTTP surface: the JSON-RPC endpoint plus health and
// metrics probes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Post("/rpc", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeModuleError maps engine sentinel errors onto JSON-RPC error codes.
func writeModuleError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusInternalServerError
	code := codeServerError
	switch {
	case errors.Is(err, assets.ErrAssetNotListed):
		status = http.StatusNotFound
		code = codeAssetNotListed
	case errors.Is(err, assets.ErrInvalidParameter),
		errors.Is(err, assets.ErrInvalidBorrowThreshold),
		errors.Is(err, assets.ErrInvalidLiquidationThreshold),
		errors.Is(err, assets.ErrNotEnoughOracles),
		errors.Is(err, assets.ErrOracleNotActive),
		errors.Is(err, assets.ErrAssetNotInPool),
		errors.Is(err, assets.ErrRateTooHigh),
		errors.Is(err, assets.ErrFeeTooHigh),
		errors.Is(err, assets.ErrZeroAddress),
		errors.Is(err, oracle.ErrInvalidThreshold),
		errors.Is(err, upgrade.ErrZeroAddress):
		status = http.StatusBadRequest
		code = codeInvalidParams
	case errors.Is(err, oracle.ErrCircuitBreakerOpen):
		status = http.StatusConflict
		code = codeBreakerOpen
	case errors.Is(err, upgrade.ErrAlreadyScheduled),
		errors.Is(err, upgrade.ErrNothingScheduled),
		errors.Is(err, upgrade.ErrTimelockActive),
		errors.Is(err, upgrade.ErrImplMismatch):
		status = http.StatusConflict
		code = codeInvalidRequest
	case errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusServiceUnavailable
		code = codeModulePaused
	case errors.Is(err, oracle.ErrInvalidPrice),
		errors.Is(err, oracle.ErrStalePrice),
		errors.Is(err, oracle.ErrTimeout),
		errors.Is(err, oracle.ErrPriceVolatility),
		errors.Is(err, oracle.ErrOracleNotConfigured),
		errors.Is(err, oracle.ErrNoActiveOracles),
		errors.Is(err, oracle.ErrNoTickMovement):
		status = http.StatusBadGateway
		code = codeOracleFailure
	}
	writeError(w, status, id, code, err.Error(), nil)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(recorder, r, req)
	observability.Module().Observe(moduleOf(req.Method), req.Method, recorder.status, time.Since(start))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "oracle_getAssetPrice":
		s.handleGetAssetPrice(w, r, req)
	case "oracle_getAssetPriceByType":
		s.handleGetAssetPriceByType(w, r, req)
	case "oracle_checkPriceDeviation":
		s.handleCheckPriceDeviation(w, r, req)
	case "oracle_circuitBroken":
		s.handleCircuitBroken(w, r, req)
	case "oracle_getConfig":
		s.handleOracleGetConfig(w, r, req)
	case "oracle_evaluateCircuitBreaker":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleEvaluateCircuitBreaker(w, r, req)
	case "oracle_updateConfig":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleOracleUpdateConfig(w, r, req)
	case "assets_getAssetInfo":
		s.handleGetAssetInfo(w, r, req)
	case "assets_isAssetValid":
		s.handleIsAssetValid(w, r, req)
	case "assets_getAssetTier":
		s.handleGetAssetTier(w, r, req)
	case "assets_getIsolationDebtCap":
		s.handleGetIsolationDebtCap(w, r, req)
	case "assets_list":
		s.handleListAssets(w, r, req)
	case "assets_tierRates":
		s.handleTierRates(w, r, req)
	case "assets_updateAssetConfig":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateAssetConfig(w, r, req)
	case "assets_updateRoundOracle":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateRoundOracle(w, r, req)
	case "assets_updateUniswapOracle":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateUniswapOracle(w, r, req)
	case "assets_updateAssetTier":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpdateAssetTier(w, r, req)
	case "assets_setTierRates":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetTierRates(w, r, req)
	case "upgrade_pending":
		s.handleUpgradePending(w, r, req)
	case "upgrade_schedule":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpgradeSchedule(w, r, req)
	case "upgrade_cancel":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpgradeCancel(w, r, req)
	case "upgrade_execute":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleUpgradeExecute(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func parseAddressParam(raw json.RawMessage, field string) (common.Address, error) {
	if raw == nil {
		return common.Address{}, fmt.Errorf("%s required", field)
	}
	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil {
		trimmed := strings.TrimSpace(direct)
		if !common.IsHexAddress(trimmed) {
			return common.Address{}, fmt.Errorf("invalid %s %q", field, direct)
		}
		return common.HexToAddress(trimmed), nil
	}
	var wrapper map[string]string
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		if value, ok := wrapper[field]; ok && common.IsHexAddress(strings.TrimSpace(value)) {
			return common.HexToAddress(strings.TrimSpace(value)), nil
		}
	}
	return common.Address{}, fmt.Errorf("invalid %s parameter", field)
}

func moduleOf(method string) string {
	if idx := strings.Index(method, "_"); idx > 0 {
		return method[:idx]
	}
	return "unknown"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
