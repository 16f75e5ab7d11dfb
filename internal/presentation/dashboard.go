// Package presentation derives the view models the client renders from
// session state. Nothing here performs I/O.
package presentation

import (
	"time"

	"github.com/okian/fheprop/internal/adapters/fhe"
	"github.com/okian/fheprop/internal/adapters/signer"
	"github.com/okian/fheprop/internal/adapters/wallet"
	"github.com/okian/fheprop/internal/domain/flight"
	"github.com/okian/fheprop/internal/domain/rating"
)

// Input is everything a dashboard is derived from.
type Input struct {
	Session     rating.State
	Wallet      wallet.State
	Signer      *signer.Info
	Encryption  fhe.State
	MockChainID uint64
	Now         time.Time
}

// WalletView summarizes the connection.
type WalletView struct {
	Connected bool     `json:"connected"`
	Mock      bool     `json:"mock"`
	ChainID   uint64   `json:"chain_id"`
	Account   string   `json:"account,omitempty"`
	Accounts  []string `json:"accounts"`
}

// Dashboard is the top-level view model.
type Dashboard struct {
	Wallet           WalletView    `json:"wallet"`
	Signer           *signer.Info  `json:"signer,omitempty"`
	Encryption       fhe.State     `json:"encryption"`
	Contract         string        `json:"contract,omitempty"`
	Deployed         bool          `json:"deployed"`
	ContractMockMode *bool         `json:"contract_mock_mode,omitempty"`
	SubmissionPath   string        `json:"submission_path"`
	Projects         []ProjectView `json:"projects"`
	IsCreating       bool          `json:"is_creating"`
	IsSubmitting     bool          `json:"is_submitting"`
	IsRefreshing     bool          `json:"is_refreshing"`
	CanCreateProject bool          `json:"can_create_project"`
	CanSubmitRating  bool          `json:"can_submit_rating"`
	Message          string        `json:"message"`
}

// Submission paths.
const (
	PathMock = "mock"
	PathReal = "real"
)

// Build derives the dashboard from in.
func Build(in Input) Dashboard {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	b := in.Session.Binding

	d := Dashboard{
		Wallet:       NewWalletView(in.Wallet),
		Signer:       in.Signer,
		Encryption:   in.Encryption,
		Deployed:     b.HasContract(),
		IsCreating:   in.Session.InFlight[flight.KindCreate],
		IsSubmitting: in.Session.InFlight[flight.KindSubmit],
		IsRefreshing: in.Session.InFlight[flight.KindRefresh],
		Message:      in.Session.Message,
	}
	if d.Deployed {
		d.Contract = b.Contract.Hex()
	}

	mockPath := b.ChainID == in.MockChainID
	d.SubmissionPath = PathReal
	if mockPath {
		d.SubmissionPath = PathMock
	}

	hasSigner := in.Signer != nil && b.HasSigner()
	encryptionReady := in.Encryption.Status == fhe.StatusReady && in.Encryption.ChainID == b.ChainID
	d.CanCreateProject = d.Deployed && hasSigner && !d.IsCreating
	d.CanSubmitRating = d.Deployed && hasSigner && !d.IsSubmitting && (mockPath || encryptionReady)

	var viewer string
	if in.Signer != nil {
		viewer = in.Signer.Address
	}
	d.Projects = ProjectViews(in.Session.Projects, now, viewer, in.Session.Rated, d.CanSubmitRating)
	return d
}

// NewWalletView summarizes s.
func NewWalletView(s wallet.State) WalletView {
	v := WalletView{
		Connected: s.Connected,
		Mock:      s.Mock,
		ChainID:   s.ChainID,
		Accounts:  make([]string, 0, len(s.Accounts)),
	}
	for _, a := range s.Accounts {
		v.Accounts = append(v.Accounts, a.Hex())
	}
	if a, ok := s.Account(); ok {
		v.Account = a.Hex()
	}
	return v
}
