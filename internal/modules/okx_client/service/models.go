package service

// Instrument - мета контракта из /api/v5/public/instruments.
type Instrument struct {
	InstID    string
	LotSz     float64
	MinSz     float64
	TickSz    float64
	CtVal     float64 // базовой монеты в одном контракте (ctVal*ctMult)
	MaxMktSz  float64
	SettleCcy string
}

type rawInstrument struct {
	InstID    string `json:"instId"`
	TickSz    string `json:"tickSz"`
	LotSz     string `json:"lotSz"`
	MinSz     string `json:"minSz"`
	CtVal     string `json:"ctVal"`
	CtMult    string `json:"ctMult"`
	State     string `json:"state"`
	MaxMktSz  string `json:"maxMktSz"`
	SettleCcy string `json:"settleCcy"`
}

type orderAck struct {
	OrdID   string `json:"ordId"`
	AlgoID  string `json:"algoId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

type balanceData struct {
	TotalEq string `json:"totalEq"`
	Details []struct {
		Ccy     string `json:"ccy"`
		Eq      string `json:"eq"`
		CashBal string `json:"cashBal"`
	} `json:"details"`
}

type pendingAlgo struct {
	AlgoID string `json:"algoId"`
	InstID string `json:"instId"`
}

type pendingOrder struct {
	OrdID  string `json:"ordId"`
	InstID string `json:"instId"`
}
