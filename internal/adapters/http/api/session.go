package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/fheprop/internal/presentation"
	"github.com/okian/fheprop/pkg/logger"
)

type switchChainRequest struct {
	ChainID uint64 `json:"chain_id"`
}

type switchAccountRequest struct {
	Address string `json:"address"`
}

func (s *Server) dashboard() presentation.Dashboard {
	in := presentation.Input{
		Session:     s.ratings.State(),
		Wallet:      s.session.WalletState(),
		Encryption:  s.session.EncryptionState(),
		MockChainID: s.ratings.MockChainID(),
		Now:         s.clock(),
	}
	if info, ok := s.session.Signer(); ok {
		in.Signer = &info
	}
	return presentation.Build(in)
}

// handleGetSession handles GET /api/v1/session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	d := s.dashboard()
	if d.Deployed {
		d.ContractMockMode = s.contractMockMode(r.Context())
	}
	writeJSON(w, http.StatusOK, d)
}

// contractMockMode reads isMockMode from the bound contract. Nil when the read fails.
func (s *Server) contractMockMode(ctx context.Context) *bool {
	on, err := s.ratings.MockMode(ctx)
	if err != nil {
		s.logger.Debug(ctx, "isMockMode read failed", logger.Error(err))
		return nil
	}
	return &on
}

// handleListProjects handles GET /api/v1/projects.
func (s *Server) handleListProjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard().Projects)
}

// handleConnect handles POST /api/v1/wallet/connect.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	const op = "api.wallet_connect"
	st, err := s.session.Connect(r.Context())
	if err != nil {
		writeFailure(w, op, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, presentation.NewWalletView(st))
}

// handleDisconnect handles POST /api/v1/wallet/disconnect.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, presentation.NewWalletView(s.session.Disconnect(r.Context())))
}

// handleSwitchChain handles POST /api/v1/wallet/chain.
func (s *Server) handleSwitchChain(w http.ResponseWriter, r *http.Request) {
	const op = "api.wallet_chain"
	var req switchChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.ChainID == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	st, err := s.session.SwitchChain(r.Context(), req.ChainID)
	if err != nil {
		writeFailure(w, op, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, presentation.NewWalletView(st))
}

// handleSwitchAccount handles POST /api/v1/wallet/account.
func (s *Server) handleSwitchAccount(w http.ResponseWriter, r *http.Request) {
	const op = "api.wallet_account"
	var req switchAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	addr := strings.TrimSpace(req.Address)
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	st, err := s.session.SwitchAccount(r.Context(), common.HexToAddress(addr))
	if err != nil {
		writeFailure(w, op, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, presentation.NewWalletView(st))
}
