package handlers

import (
	"net/http"

	"github.com/username/soldrip/backend/src/logger"
	"github.com/username/soldrip/backend/src/models"
	"github.com/username/soldrip/backend/src/security/validation"
	"github.com/username/soldrip/backend/src/services"
	"github.com/username/soldrip/backend/src/utils"
)

type ProtocolHandler struct {
	protocolService services.ProtocolService
}

func NewProtocolHandler(service services.ProtocolService) *ProtocolHandler {
	return &ProtocolHandler{protocolService: service}
}

type initializeBody struct {
	Authority     string `json:"authority"`
	Mint          string `json:"mint"`
	DividendPool  string `json:"dividend_pool"`
	LPPool        string `json:"lp_pool"`
	BuybackEscrow string `json:"buyback_escrow"`
	TotalSupply   uint64 `json:"total_supply"`
}

type transferBody struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
	Memo        string `json:"memo"`
}

type distributeBody struct {
	Distributor string `json:"distributor"`
}

type volatilityBody struct {
	Authority      string `json:"authority"`
	FluctuationBps uint16 `json:"fluctuation_bps"`
}

type creditBody struct {
	Authority string `json:"authority"`
	Account   string `json:"account"`
	Asset     string `json:"asset"`
	Amount    uint64 `json:"amount"`
}

func (h *ProtocolHandler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	var body initializeBody
	if err := decodeJSON(w, r, &body); err != nil {
		sendServiceError(w, r, err)
		return
	}

	req := services.InitializeRequest{Token: GetSignerToken(r.Context()), TotalSupply: body.TotalSupply}
	var err error
	if req.Authority, err = validation.ValidateAccountKey(body.Authority, "authority"); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if req.Mint, err = validation.ValidateAccountKey(body.Mint, "mint"); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if req.DividendPool, err = validation.ValidateAccountKey(body.DividendPool, "dividend_pool"); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if req.LPPool, err = validation.ValidateAccountKey(body.LPPool, "lp_pool"); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if req.BuybackEscrow, err = validation.ValidateOptionalAccountKey(body.BuybackEscrow, "buyback_escrow"); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if err := validation.ValidateAmount(body.TotalSupply, "total_supply", false); err != nil {
		sendServiceError(w, r, err)
		return
	}

	state, err := h.protocolService.Initialize(r.Context(), req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, state)
}

func (h *ProtocolHandler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if err := decodeJSON(w, r, &body); err != nil {
		sendServiceError(w, r, err)
		return
	}

	requestID := GetRequestID(r.Context())
	req := services.TransferRequest{Token: GetSignerToken(r.Context()), RequestID: requestID, Amount: body.Amount}
	var err error
	if req.Source, err = validation.ValidateAccountKey(body.Source, "source"); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if req.Destination, err = validation.ValidateAccountKey(body.Destination, "destination"); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if err := validation.ValidateAmount(body.Amount, "amount", false); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if req.Memo, err = validation.SanitizeMemo(body.Memo, requestID); err != nil {
		sendServiceError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Debug("Handling TransferWithTax", "source", body.Source, "amount", body.Amount)

	result, err := h.protocolService.TransferWithTax(r.Context(), req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

func (h *ProtocolHandler) HandleDistribute(w http.ResponseWriter, r *http.Request) {
	var body distributeBody
	if err := decodeJSON(w, r, &body); err != nil {
		sendServiceError(w, r, err)
		return
	}
	distributor, err := validation.ValidateAccountKey(body.Distributor, "distributor")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	summary, err := h.protocolService.DistributeDividends(r.Context(), services.DistributeRequest{
		Token:       GetSignerToken(r.Context()),
		Distributor: distributor,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

func (h *ProtocolHandler) HandleSetVolatility(w http.ResponseWriter, r *http.Request) {
	var body volatilityBody
	if err := decodeJSON(w, r, &body); err != nil {
		sendServiceError(w, r, err)
		return
	}
	authority, err := validation.ValidateAccountKey(body.Authority, "authority")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if err := validation.ValidateFluctuationBps(body.FluctuationBps); err != nil {
		sendServiceError(w, r, err)
		return
	}

	state, err := h.protocolService.SetPriceFluctuation(r.Context(), services.VolatilityRequest{
		Token:          GetSignerToken(r.Context()),
		Authority:      authority,
		FluctuationBps: body.FluctuationBps,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, state)
}

func (h *ProtocolHandler) HandleCredit(w http.ResponseWriter, r *http.Request) {
	var body creditBody
	if err := decodeJSON(w, r, &body); err != nil {
		sendServiceError(w, r, err)
		return
	}

	req := services.CreditRequest{Token: GetSignerToken(r.Context()), Asset: models.Asset(body.Asset), Amount: body.Amount}
	var err error
	if req.Authority, err = validation.ValidateAccountKey(body.Authority, "authority"); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if req.Account, err = validation.ValidateAccountKey(body.Account, "account"); err != nil {
		sendServiceError(w, r, err)
		return
	}
	if req.Asset == "" {
		req.Asset = models.AssetNative
	}
	if err := validation.ValidateAmount(body.Amount, "amount", true); err != nil {
		sendServiceError(w, r, err)
		return
	}

	account, err := h.protocolService.CreditAccount(r.Context(), req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, account)
}
