package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"cryptvault/native/fees"
	"cryptvault/native/strategy"
	"cryptvault/services/indexer"
)

const maxBodyBytes = 1 << 16

type vaultView struct {
	Address           common.Address `json:"address"`
	Name              string         `json:"name"`
	Symbol            string         `json:"symbol"`
	Want              common.Address `json:"want"`
	Strategy          common.Address `json:"strategy"`
	Balance           *uint256.Int   `json:"balance"`
	Available         *uint256.Int   `json:"available"`
	TotalSupply       *uint256.Int   `json:"totalSupply"`
	PricePerFullShare *uint256.Int   `json:"pricePerFullShare"`
	TvlCap            *uint256.Int   `json:"tvlCap"`
	DepositFeeBps     uint64         `json:"depositFeeBps"`
	WithdrawFeeBps    uint64         `json:"withdrawFeeBps"`
}

type holderView struct {
	Holder                common.Address `json:"holder"`
	Shares                *uint256.Int   `json:"shares"`
	CumulativeDeposits    *uint256.Int   `json:"cumulativeDeposits"`
	CumulativeWithdrawals *uint256.Int   `json:"cumulativeWithdrawals"`
}

type logEntryView struct {
	Timestamp    int64        `json:"timestamp"`
	AssetsBefore *uint256.Int `json:"assetsBefore"`
	AssetsAfter  *uint256.Int `json:"assetsAfter"`
}

type strategyView struct {
	Address           common.Address `json:"address"`
	Vault             common.Address `json:"vault"`
	State             string         `json:"state"`
	Balance           *uint256.Int   `json:"balance"`
	Fees              fees.Split     `json:"fees"`
	HarvestLogCadence uint64         `json:"harvestLogCadence"`
	Inception         int64          `json:"inception"`
	LastHarvest       int64          `json:"lastHarvest"`
	Log               []logEntryView `json:"log"`
}

type harvestView struct {
	Timestamp     int64        `json:"timestamp"`
	AssetsBefore  *uint256.Int `json:"assetsBefore"`
	AssetsAfter   *uint256.Int `json:"assetsAfter"`
	Profit        *uint256.Int `json:"profit"`
	TreasuryFee   *uint256.Int `json:"treasuryFee"`
	StrategistFee *uint256.Int `json:"strategistFee"`
	CallFee       *uint256.Int `json:"callFee"`
	Compounded    *uint256.Int `json:"compounded"`
	Logged        bool         `json:"logged"`
	Coalesced     bool         `json:"coalesced"`
}

// actionRequest carries operation arguments. The caller is never read from
// the body; it comes from the verified bearer token.
type actionRequest struct {
	Amount string `json:"amount"`
	Shares string `json:"shares"`
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	var view vaultView
	_ = s.journal.View(func() error {
		v := s.deployment.Vault
		view = vaultView{
			Address:           v.Address(),
			Name:              v.Name(),
			Symbol:            v.Symbol(),
			Want:              v.Want(),
			Strategy:          v.Strategy(),
			Balance:           v.Balance(),
			Available:         v.Available(),
			TotalSupply:       v.TotalSupply(),
			PricePerFullShare: v.GetPricePerFullShare(),
			TvlCap:            v.TvlCap(),
			DepositFeeBps:     v.DepositFeeBps(),
			WithdrawFeeBps:    v.WithdrawFeeBps(),
		}
		return nil
	})
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHolder(w http.ResponseWriter, r *http.Request) {
	holder, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var view holderView
	_ = s.journal.View(func() error {
		v := s.deployment.Vault
		view = holderView{
			Holder:                holder,
			Shares:                v.BalanceOf(holder),
			CumulativeDeposits:    v.CumulativeDeposits(holder),
			CumulativeWithdrawals: v.CumulativeWithdrawals(holder),
		}
		return nil
	})
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	req, caller, err := decodeAction(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var shares *uint256.Int
	err = s.journal.Exec(func() error {
		var err error
		if strings.EqualFold(req.Amount, "all") {
			shares, err = s.deployment.Vault.DepositAll(caller)
			return err
		}
		amount, err := parseAmount(req.Amount)
		if err != nil {
			return err
		}
		shares, err = s.deployment.Vault.Deposit(caller, amount)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": shares})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	req, caller, err := decodeAction(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var payout *uint256.Int
	err = s.journal.Exec(func() error {
		var err error
		if strings.EqualFold(req.Shares, "all") {
			payout, err = s.deployment.Vault.WithdrawAll(caller)
			return err
		}
		shares, err := parseAmount(req.Shares)
		if err != nil {
			return err
		}
		payout, err = s.deployment.Vault.Withdraw(caller, shares)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"amount": payout})
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	var view strategyView
	_ = s.journal.View(func() error {
		st := s.deployment.Strategy
		entries := st.HarvestLog()
		logView := make([]logEntryView, 0, len(entries))
		for _, e := range entries {
			logView = append(logView, logEntryView{Timestamp: e.Timestamp, AssetsBefore: e.AssetsBefore, AssetsAfter: e.AssetsAfter})
		}
		view = strategyView{
			Address:           st.Address(),
			Vault:             st.Vault(),
			State:             st.State().String(),
			Balance:           st.BalanceOf(),
			Fees:              st.Fees(),
			HarvestLogCadence: st.HarvestLogCadence(),
			Inception:         st.Inception(),
			LastHarvest:       st.LastHarvest(),
			Log:               logView,
		}
		return nil
	})
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var profit, callFee *uint256.Int
	err := s.journal.View(func() error {
		var err error
		profit, callFee, err = s.deployment.Strategy.EstimateHarvest()
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profit": profit, "callFee": callFee})
}

func (s *Server) handleAPR(w http.ResponseWriter, r *http.Request) {
	n := strategy.DefaultLogCapacity
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: n must be an integer", errBadRequest))
			return
		}
		n = parsed
	}
	var bps int64
	err := s.journal.View(func() error {
		var err error
		bps, err = s.deployment.Strategy.AverageAPRAcrossLastNHarvests(n)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"n": n, "aprBps": bps})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "harvest archive disabled")
		return
	}
	filter := indexer.HistoryFilter{Limit: 50, Strategy: r.URL.Query().Get("strategy")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.fail(w, r, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		filter.Limit = limit
	}
	records, err := s.history.History(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	_, caller, err := decodeAction(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var result *strategy.HarvestResult
	err = s.journal.Exec(func() error {
		var err error
		result, err = s.deployment.Strategy.Harvest(caller)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, harvestView{
		Timestamp:     result.Timestamp,
		AssetsBefore:  result.AssetsBefore,
		AssetsAfter:   result.AssetsAfter,
		Profit:        result.Profit,
		TreasuryFee:   result.TreasuryFee,
		StrategistFee: result.StrategistFee,
		CallFee:       result.CallFee,
		Compounded:    result.Compounded,
		Logged:        result.Logged,
		Coalesced:     result.Coalesced,
	})
}

func (s *Server) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	_, caller, err := decodeAction(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st := s.deployment.Strategy
	action := chi.URLParam(r, "action")
	err = s.journal.Exec(func() error {
		switch action {
		case "pause":
			return st.Pause(caller)
		case "unpause":
			return st.Unpause(caller)
		case "panic":
			return st.Panic(caller)
		default:
			return st.RetireStrat(caller)
		}
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": st.State().String()})
}

func decodeAction(w http.ResponseWriter, r *http.Request) (actionRequest, common.Address, error) {
	var req actionRequest
	caller, err := callerFrom(r.Context())
	if err != nil {
		return req, common.Address{}, err
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, common.Address{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return req, caller, nil
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", errBadRequest, raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(raw string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q", errBadRequest, raw)
	}
	return amount, nil
}
