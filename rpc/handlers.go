package rpc

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"escrowd/core"
	"escrowd/core/types"
	"escrowd/escrow"
	"escrowd/ledger"
)

type accountMetaJSON struct {
	Key      string `json:"key"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

type submitInstructionParams struct {
	Program  string            `json:"program"`
	Data     string            `json:"data"`
	Accounts []accountMetaJSON `json:"accounts"`
}

type submitInstructionResult struct {
	Events []*types.Event `json:"events"`
}

type escrowJSON struct {
	Account    string `json:"account"`
	Settled    bool   `json:"settled"`
	Canceled   bool   `json:"canceled"`
	Payer      string `json:"payer"`
	PayerToken string `json:"payerToken"`
	PayeeToken string `json:"payeeToken"`
	VaultToken string `json:"vaultToken"`
	FeeToken   string `json:"feeToken"`
	Authority  string `json:"authority"`
	Amount     uint64 `json:"amount"`
	Fee        uint64 `json:"fee"`
}

type accountJSON struct {
	Key      string `json:"key"`
	Owner    string `json:"owner"`
	Lamports uint64 `json:"lamports"`
	DataLen  int    `json:"dataLen"`
}

func (s *Server) handleSubmitInstruction(w http.ResponseWriter, r *http.Request) {
	var params submitInstructionParams
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, "malformed request body")
		return
	}
	program, err := ledger.ParseAddress(params.Program)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, "invalid program address")
		return
	}
	data, err := base64.StdEncoding.DecodeString(params.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, "instruction data must be base64")
		return
	}
	metas := make([]core.AccountMeta, 0, len(params.Accounts))
	for _, meta := range params.Accounts {
		key, err := ledger.ParseAddress(meta.Key)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidParams, "invalid account address")
			return
		}
		metas = append(metas, core.AccountMeta{Key: key, Signer: meta.Signer, Writable: meta.Writable})
	}

	emitted, err := s.node.SubmitInstruction(program, metas, data)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if emitted == nil {
		emitted = []*types.Event{}
	}
	writeJSON(w, http.StatusOK, submitInstructionResult{Events: emitted})
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	addr, err := ledger.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, "invalid escrow address")
		return
	}
	esc, err := s.node.EscrowInfo(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, escrowJSON{
		Account:    addr.String(),
		Settled:    esc.Settled,
		Canceled:   esc.Canceled,
		Payer:      esc.Payer.String(),
		PayerToken: esc.PayerToken.String(),
		PayeeToken: esc.PayeeToken.String(),
		VaultToken: esc.VaultToken.String(),
		FeeToken:   esc.FeeToken.String(),
		Authority:  esc.Authority.String(),
		Amount:     esc.Amount,
		Fee:        esc.Fee,
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := ledger.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidParams, "invalid account address")
		return
	}
	acc, err := s.node.GetAccount(addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountJSON{
		Key:      acc.Key.String(),
		Owner:    acc.Owner.String(),
		Lamports: acc.Lamports,
		DataLen:  len(acc.Data),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeEngineError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	writeError(w, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnknownAccount), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, core.ErrUnknownProgram),
		errors.Is(err, escrow.ErrInvalidInstruction),
		errors.Is(err, escrow.ErrNotEnoughAccounts):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, escrow.ErrMissingSigner),
		errors.Is(err, escrow.ErrIllegalOwner),
		errors.Is(err, escrow.ErrAccountKeyMismatch),
		errors.Is(err, escrow.ErrInvalidAuthorityID):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, escrow.ErrAccountAlreadyInitialized),
		errors.Is(err, escrow.ErrAccountAlreadySettled),
		errors.Is(err, escrow.ErrAccountAlreadyCanceled),
		errors.Is(err, escrow.ErrAccountNotSettledOrCanceled),
		errors.Is(err, core.ErrAccountExists):
		return http.StatusConflict, codeConflict
	case errors.Is(err, escrow.ErrExpectedAmountMismatch),
		errors.Is(err, escrow.ErrFeeOverflow),
		errors.Is(err, escrow.ErrAmountOverflow),
		errors.Is(err, escrow.ErrNotRentExempt),
		errors.Is(err, escrow.ErrAccountNotInitialized),
		errors.Is(err, escrow.ErrInvalidAccountData):
		return http.StatusUnprocessableEntity, codeRejected
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
