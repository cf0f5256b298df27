package rpc

import (
	"net/http"
)

type upgradePendingResult struct {
	Pending          bool   `json:"pending"`
	Implementation   string `json:"implementation,omitempty"`
	RemainingSeconds int64  `json:"remainingSeconds"`
}

func (s *Server) handleUpgradePending(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	impl, pending := s.timelock.Pending()
	result := upgradePendingResult{Pending: pending}
	if pending {
		result.Implementation = impl.Hex()
		result.RemainingSeconds = int64(s.timelock.Remaining().Seconds())
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleUpgradeSchedule(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "implementation parameter required", nil)
		return
	}
	impl, err := parseAddressParam(req.Params[0], "implementation")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.timelock.Schedule(impl); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleUpgradeCancel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if err := s.timelock.Cancel(); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleUpgradeExecute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "implementation parameter required", nil)
		return
	}
	impl, err := parseAddressParam(req.Params[0], "implementation")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.timelock.Execute(impl); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}
