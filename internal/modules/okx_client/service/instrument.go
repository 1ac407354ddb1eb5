package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"trade_guard/internal/exchange"
)

// instrument - мета контракта с кешем: лоты и шаг цены не меняются между тиками.
func (c *Client) instrument(ctx context.Context, instID string) (Instrument, error) {
	c.mu.RLock()
	inst, ok := c.insts[instID]
	c.mu.RUnlock()
	if ok {
		return inst, nil
	}

	var rows []rawInstrument
	q := url.Values{"instType": {"SWAP"}, "instId": {instID}}
	if err := c.do(ctx, "okx.instruments", http.MethodGet, "/api/v5/public/instruments", q, nil, false, &rows); err != nil {
		return Instrument{}, err
	}
	if len(rows) == 0 {
		return Instrument{}, exchange.Rejected("okx.instruments", "", "instrument %s not found", instID)
	}
	raw := rows[0]
	if raw.State != "" && raw.State != "live" {
		return Instrument{}, exchange.Rejected("okx.instruments", "", "instrument %s not live: state=%s", instID, raw.State)
	}

	parsePos := func(name, s string) (float64, error) {
		if s == "" {
			return 0, errors.Errorf("%s empty", name)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return 0, errors.Errorf("%s parse: %v (%q)", name, err, s)
		}
		return v, nil
	}

	inst = Instrument{InstID: raw.InstID, SettleCcy: raw.SettleCcy}
	var err error
	if inst.LotSz, err = parsePos("lotSz", raw.LotSz); err != nil {
		return Instrument{}, err
	}
	if inst.MinSz, err = parsePos("minSz", raw.MinSz); err != nil {
		return Instrument{}, err
	}
	if inst.TickSz, err = parsePos("tickSz", raw.TickSz); err != nil {
		return Instrument{}, err
	}
	ctVal, err := parsePos("ctVal", raw.CtVal)
	if err != nil {
		return Instrument{}, err
	}
	ctMult := 1.0
	if raw.CtMult != "" {
		if v, e := strconv.ParseFloat(raw.CtMult, 64); e == nil && v > 0 {
			ctMult = v
		}
	}
	inst.CtVal = ctVal * ctMult
	if raw.MaxMktSz != "" {
		inst.MaxMktSz, _ = strconv.ParseFloat(raw.MaxMktSz, 64)
	}

	c.mu.Lock()
	c.insts[instID] = inst
	c.mu.Unlock()
	return inst, nil
}
