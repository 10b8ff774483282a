package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luoye/poolswap/internal/amm"
	"github.com/luoye/poolswap/internal/ledger"
	"github.com/luoye/poolswap/internal/model"
)

// App wires the pool engine into an HTTP surface.
type App struct {
	engine  *amm.Engine
	ledgers map[common.Address]ledger.Ledger
	logger  *zap.Logger
}

func NewApp(engine *amm.Engine, ledgers map[common.Address]ledger.Ledger, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{engine: engine, ledgers: ledgers, logger: logger}
}

// Router builds the gin router.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/pool", a.getPool)
	router.GET("/quote", a.getQuote)
	router.GET("/price", a.getPrice)
	router.POST("/swap", a.postSwap)
	router.POST("/approve", a.postApprove)
	router.POST("/faucet", a.postFaucet)
	router.GET("/balance", a.getBalance)

	return router
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, amm.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, amm.ErrInsufficientLiquidity):
		status = http.StatusConflict
	case errors.Is(err, amm.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, amm.ErrTransferFailed):
		status = http.StatusConflict
	case errors.Is(err, amm.ErrOverflow):
		status = http.StatusBadRequest
	case errors.Is(err, amm.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

func (a *App) getPool(c *gin.Context) {
	st, err := a.engine.PairState(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.PairRecord{
		Pool:     a.engine.Name(),
		AssetX:   st.AssetX.Hex(),
		AssetY:   st.AssetY.Hex(),
		ReserveX: model.FormatAmount(st.ReserveX),
		ReserveY: model.FormatAmount(st.ReserveY),
		K:        model.FormatAmount(st.K),
	})
}

type quoteResponse struct {
	Direction string `json:"direction"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

func (a *App) getQuote(c *gin.Context) {
	dir, err := amm.ParseDirection(c.Query("direction"))
	if err != nil {
		a.fail(c, err)
		return
	}
	amountIn, err := model.ParseAmount(c.Query("amount_in"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	out, err := a.engine.Quote(c.Request.Context(), dir, amountIn)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quoteResponse{
		Direction: dir.String(),
		AmountIn:  model.FormatAmount(amountIn),
		AmountOut: model.FormatAmount(out),
	})
}

type priceResponse struct {
	Direction string `json:"direction"`
	SpotPrice string `json:"spot_price"`
}

func (a *App) getPrice(c *gin.Context) {
	dir, err := amm.ParseDirection(c.Query("direction"))
	if err != nil {
		a.fail(c, err)
		return
	}
	price, err := a.engine.SpotPrice(c.Request.Context(), dir)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, priceResponse{
		Direction: dir.String(),
		SpotPrice: price.StringFixed(6),
	})
}

type swapRequest struct {
	Caller    string `json:"caller"`
	Direction string `json:"direction"`
	AmountIn  string `json:"amount_in"`
}

func (a *App) postSwap(c *gin.Context) {
	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !common.IsHexAddress(req.Caller) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "caller must be a hex address"})
		return
	}
	dir, err := amm.ParseDirection(req.Direction)
	if err != nil {
		a.fail(c, err)
		return
	}
	amountIn, err := model.ParseAmount(req.AmountIn)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	caller := common.HexToAddress(req.Caller)
	out, err := a.engine.Swap(c.Request.Context(), caller, dir, amountIn)
	if err != nil {
		a.fail(c, err)
		return
	}

	st, err := a.engine.PairState(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SwapReceipt{
		Caller:    caller.Hex(),
		Direction: dir.String(),
		AmountIn:  model.FormatAmount(amountIn),
		AmountOut: model.FormatAmount(out),
		ReserveX:  model.FormatAmount(st.ReserveX),
		ReserveY:  model.FormatAmount(st.ReserveY),
		K:         model.FormatAmount(st.K),
	})
}

type approveRequest struct {
	Asset   string `json:"asset"`
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (a *App) postApprove(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	l, ok := a.ledgerByHex(req.Asset)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown asset"})
		return
	}
	if !common.IsHexAddress(req.Owner) || !common.IsHexAddress(req.Spender) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "owner and spender must be hex addresses"})
		return
	}
	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	err = l.Approve(c.Request.Context(),
		common.HexToAddress(req.Owner), common.HexToAddress(req.Spender), amount, time.Time{})
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type faucetRequest struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// postFaucet mints peer-asset units to an account. Local development only;
// issuance policy belongs to the asset owner, not the pool.
func (a *App) postFaucet(c *gin.Context) {
	var req faucetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	l, ok := a.ledgerByHex(req.Asset)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown asset"})
		return
	}
	if !common.IsHexAddress(req.Account) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "account must be a hex address"})
		return
	}
	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := l.Mint(c.Request.Context(), common.HexToAddress(req.Account), amount); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type balanceResponse struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

func (a *App) getBalance(c *gin.Context) {
	l, ok := a.ledgerByHex(c.Query("asset"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown asset"})
		return
	}
	account := c.Query("account")
	if !common.IsHexAddress(account) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "account must be a hex address"})
		return
	}

	balance, err := l.Balance(c.Request.Context(), common.HexToAddress(account))
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, balanceResponse{
		Asset:   common.HexToAddress(c.Query("asset")).Hex(),
		Account: common.HexToAddress(account).Hex(),
		Balance: model.FormatAmount(balance),
	})
}

func (a *App) ledgerByHex(asset string) (ledger.Ledger, bool) {
	if !common.IsHexAddress(asset) {
		return nil, false
	}
	l, ok := a.ledgers[common.HexToAddress(asset)]
	return l, ok
}
