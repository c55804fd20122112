// Package riot wraps the Riot HTTP API. Account and match endpoints live on
// the regional host, summoner/ranked/mastery endpoints on the platform host;
// every call funnels through one request primitive that owns the retry
// policy.
package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"sub2play/internal/apperr"
	"sub2play/internal/config"
	"sub2play/internal/constants"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

const userAgent = "sub2play/1.0"

type Client struct {
	apiKey       string
	platformBase string
	regionalBase string
	client       *fasthttp.Client
	logger       zerolog.Logger
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		apiKey:       cfg.RiotAPIKey,
		platformBase: cfg.RiotPlatformBase,
		regionalBase: cfg.RiotRegionalBase,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

// ResolveAccount maps a riot id (game name + tag) to the player identity.
func (c *Client) ResolveAccount(ctx context.Context, gameName, tagLine string) (*Account, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.regionalBase, url.PathEscape(gameName), url.PathEscape(tagLine))

	status, body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusNotFound {
		return nil, apperr.New(apperr.KindNotFound, "riot account not found")
	}
	if !is2xx(status) {
		return nil, hardFail("account lookup", status, body)
	}

	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "failed to parse riot account response", err)
	}
	return &account, nil
}

func (c *Client) GetSummoner(ctx context.Context, puuid string) (*Summoner, error) {
	u := fmt.Sprintf("%s/lol/summoner/v4/summoners/by-puuid/%s",
		c.platformBase, url.PathEscape(puuid))

	status, body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusNotFound {
		return nil, apperr.New(apperr.KindNotFound, "summoner not found")
	}
	if !is2xx(status) {
		return nil, hardFail("summoner lookup", status, body)
	}

	var summoner Summoner
	if err := json.Unmarshal(body, &summoner); err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "failed to parse riot summoner response", err)
	}
	return &summoner, nil
}

func (c *Client) GetRankedEntries(ctx context.Context, summonerID string) ([]RankedEntry, error) {
	u := fmt.Sprintf("%s/lol/league/v4/entries/by-summoner/%s",
		c.platformBase, url.PathEscape(summonerID))

	status, body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusNotFound {
		return nil, nil
	}
	if !is2xx(status) {
		return nil, hardFail("ranked entries", status, body)
	}

	var entries []RankedEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "failed to parse ranked entries", err)
	}
	return entries, nil
}

func (c *Client) GetChampionMasteries(ctx context.Context, puuid string) ([]ChampionMastery, error) {
	u := fmt.Sprintf("%s/lol/champion-mastery/v4/champion-masteries/by-puuid/%s",
		c.platformBase, url.PathEscape(puuid))

	status, body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusNotFound {
		return nil, nil
	}
	if !is2xx(status) {
		return nil, hardFail("champion mastery", status, body)
	}

	var masteries []ChampionMastery
	if err := json.Unmarshal(body, &masteries); err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "failed to parse champion mastery", err)
	}
	return masteries, nil
}

func (c *Client) ListMatchIDs(ctx context.Context, puuid string, start, count int) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=%d&count=%d",
		c.regionalBase, url.PathEscape(puuid), start, count)

	status, body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusNotFound {
		return nil, nil
	}
	if !is2xx(status) {
		return nil, hardFail("match ids", status, body)
	}

	var ids []string
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, apperr.Wrap(apperr.KindParse, "failed to parse match ids", err)
	}
	return ids, nil
}

// GetMatch returns the raw match payload. The id comes from a prior listing,
// so a 404 here is a hard failure rather than a valid absence.
func (c *Client) GetMatch(ctx context.Context, matchID string) ([]byte, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s",
		c.regionalBase, url.PathEscape(matchID))

	status, body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if status == fasthttp.StatusNotFound {
		return nil, apperr.Newf(apperr.KindUpstream, "match %s not found", matchID)
	}
	if !is2xx(status) {
		return nil, hardFail("match details", status, body)
	}
	return body, nil
}

// get performs one authenticated GET with the shared retry policy: 429 and
// connection failures are transient up to the attempt ceiling, a 429's
// Retry-After overrides the computed backoff, and exhausting the ceiling on
// 429 hands the last status/body to the caller.
func (c *Client) get(ctx context.Context, u string) (int, []byte, error) {
	var status int
	var body []byte

	hint := &retryAfterHint{}
	backoff := hint.wrap(retry.WithMaxRetries(constants.RiotMaxAttempts-1,
		retry.WithJitter(constants.RiotBackoffJitter,
			retry.NewExponential(constants.RiotBackoffBase))))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		st, b, retryAfterSec, doErr := c.do(ctx, u)
		if doErr != nil {
			c.logger.Warn().Err(doErr).Str("url", u).Msg("riot request failed, retrying")
			return retry.RetryableError(doErr)
		}

		status, body = st, b
		if st == fasthttp.StatusTooManyRequests {
			c.logger.Warn().Int("retry_after", retryAfterSec).Str("url", u).Msg("riot rate limited")
			hint.set(retryAfterSec)
			return retry.RetryableError(fmt.Errorf("riot api rate limited"))
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		if status == fasthttp.StatusTooManyRequests {
			return status, body, nil
		}
		return 0, nil, apperr.Wrap(apperr.KindUpstream, "riot request failed", err)
	}
	return status, body, nil
}

func (c *Client) do(ctx context.Context, u string) (int, []byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(u)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Riot-Token", c.apiKey)
	req.Header.Set("User-Agent", userAgent)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return 0, nil, 0, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return 0, nil, 0, err
		}
	}

	retryAfter := 0
	if v := string(resp.Header.Peek("Retry-After")); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			retryAfter = sec
		}
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return resp.StatusCode(), body, retryAfter, nil
}

// retryAfterHint lets the request function feed a server-supplied delay into
// the next backoff step.
type retryAfterHint struct {
	seconds atomic.Int64
}

func (h *retryAfterHint) set(sec int) {
	if sec > 0 {
		h.seconds.Store(int64(sec))
	}
}

func (h *retryAfterHint) wrap(next retry.Backoff) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		if sec := h.seconds.Swap(0); sec > 0 {
			return time.Duration(sec) * time.Second, false
		}
		return d, false
	})
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}

func hardFail(op string, status int, body []byte) error {
	snippet := body
	if len(snippet) > constants.RiotBodySnippetLen {
		snippet = snippet[:constants.RiotBodySnippetLen]
	}
	return apperr.Newf(apperr.KindUpstream, "riot api returned status %d for %s: %s", status, op, snippet)
}
