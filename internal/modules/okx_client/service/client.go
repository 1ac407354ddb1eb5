package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trade_guard/internal/exchange"
)

type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	Passphrase string
	Simulated  bool
	MarginMode string // isolated | cross
	QuoteCcy   string
	Timeout    time.Duration
}

// Client - REST-шлюз OKX. Реализует exchange.Gateway, OrderCanceler и CredentialChecker.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
	passph    string
	simulated bool
	tdMode    string
	quote     string
	now       func() time.Time

	mu    sync.RWMutex
	insts map[string]Instrument // instId -> мета, кешируется навсегда
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://www.okx.com"
	}
	tdMode := cfg.MarginMode
	if tdMode == "" {
		tdMode = "isolated"
	}
	quote := cfg.QuoteCcy
	if quote == "" {
		quote = "USDT"
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   base,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		passph:    cfg.Passphrase,
		simulated: cfg.Simulated,
		tdMode:    tdMode,
		quote:     quote,
		now:       time.Now,
		insts:     make(map[string]Instrument),
	}
}

func (c *Client) HasCredentials() bool {
	return c.apiKey != "" && c.apiSecret != "" && c.passph != ""
}

func (c *Client) sign(ts, method, requestPath, body string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(ts + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// транзиентные коды OKX: системная ошибка, сервис недоступен, rate limit, занятость.
var transientCodes = map[string]bool{
	"50001": true,
	"50004": true,
	"50011": true,
	"50013": true,
	"50026": true,
}

type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type itemStatus struct {
	SCode string `json:"sCode"`
	SMsg  string `json:"sMsg"`
}

// do выполняет запрос и классифицирует ответ: сеть/429/5xx/транзиентные коды -> TransientError,
// прочие отказы -> RejectedError. При успехе data раскладывается в out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, signed bool, out any) error {
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = sonic.Marshal(body); err != nil {
			return errors.Wrapf(err, "%s marshal", op)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "%s new request", op)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.simulated {
		req.Header.Set("x-simulated-trading", "1")
	}
	if signed {
		ts := c.now().UTC().Format("2006-01-02T15:04:05.000Z")
		req.Header.Set("OK-ACCESS-KEY", c.apiKey)
		req.Header.Set("OK-ACCESS-SIGN", c.sign(ts, method, requestPath, string(payload)))
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", c.passph)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return exchange.Transient(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return exchange.Transient(op, errors.Wrap(err, "read body"))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
		return exchange.Transient(op, fmt.Errorf("http %d: %s", resp.StatusCode, string(data)))
	}

	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		if resp.StatusCode/100 != 2 {
			return exchange.Rejected(op, "", "http %d: %s", resp.StatusCode, string(data))
		}
		return exchange.Transient(op, errors.Wrapf(err, "decode body=%s", string(data)))
	}

	if env.Code != "0" {
		code, msg := env.Code, env.Msg
		// у торговых методов детальная причина лежит в data[0].sCode
		var items []itemStatus
		if len(env.Data) > 0 && sonic.Unmarshal(env.Data, &items) == nil && len(items) > 0 && items[0].SCode != "" && items[0].SCode != "0" {
			code, msg = items[0].SCode, items[0].SMsg
		}
		if transientCodes[code] || transientCodes[env.Code] {
			return exchange.Transient(op, fmt.Errorf("okx code=%s msg=%s", code, msg))
		}
		return exchange.Rejected(op, code, "%s", msg)
	}
	if resp.StatusCode/100 != 2 {
		return exchange.Rejected(op, "", "http %d: %s", resp.StatusCode, string(data))
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(env.Data, out); err != nil {
		return errors.Wrapf(err, "%s decode data", op)
	}
	return nil
}

// clOrdID: OKX принимает до 32 буквенно-цифровых символов, uuid без дефисов влезает ровно.
func clOrdID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 32 {
		id = id[:32]
	}
	return id
}
