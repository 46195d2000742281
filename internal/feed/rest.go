package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"ict_bot/internal/models"
)

// restClient — исторические бары из REST-части моста.
type restClient struct {
	client *resty.Client
}

func newRESTClient(baseURL string) *restClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10 * time.Second)
	return &restClient{client: client}
}

func (c *restClient) candleRange(
	ctx context.Context,
	symbol string,
	tf models.Timeframe,
	from, to time.Time,
	limit int,
	accountID int64,
	broker string,
) (out []models.Candle, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("bridge candle range %s %s: %w", symbol, tf, err)
		}
	}()

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"timeframe": string(tf),
			"from":      strconv.FormatInt(from.UTC().Unix(), 10),
			"to":        strconv.FormatInt(to.UTC().Unix(), 10),
			"limit":     strconv.Itoa(limit),
		}).
		Get("/api/v1/candles")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), resp.Body())
	}

	var body struct {
		Code string       `json:"code"`
		Msg  string       `json:"msg"`
		Data []wireCandle `json:"data"`
	}
	if err := sonic.Unmarshal(resp.Body(), &body); err != nil {
		return nil, err
	}
	if body.Code != "" && body.Code != "0" {
		return nil, fmt.Errorf("bridge error %s: %s", body.Code, body.Msg)
	}

	out = make([]models.Candle, 0, len(body.Data))
	for i := range body.Data {
		candle, cErr := body.Data[i].toCandle(accountID, broker)
		if cErr != nil {
			return nil, cErr
		}
		out = append(out, candle)
	}
	return out, nil
}
