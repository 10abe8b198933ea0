// Package twitter fetches recent tweets for a watched account through the
// twttrapi RapidAPI gateway.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/solwatch/pumpbot/internal/domain"
)

// DefaultMaxTweetAge keeps the bot from reacting to stale posts on startup or
// after an outage.
const DefaultMaxTweetAge = time.Minute

// createdAtLayout is Twitter's legacy timestamp format,
// e.g. "Mon Jan 02 15:04:05 +0000 2006".
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// Client is the REST client for the twttrapi user-tweets endpoint.
type Client struct {
	baseURL    string
	host       string
	apiKey     string
	maxAge     time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a twttrapi client. baseURL is the gateway root,
// e.g. "https://twttrapi.p.rapidapi.com". A maxAge of 0 falls back to
// DefaultMaxTweetAge.
func NewClient(baseURL, apiKey string, maxAge time.Duration) *Client {
	if maxAge <= 0 {
		maxAge = DefaultMaxTweetAge
	}
	u, _ := url.Parse(baseURL)
	host := ""
	if u != nil {
		host = u.Host
	}
	return &Client{
		baseURL: baseURL,
		host:    host,
		apiKey:  apiKey,
		maxAge:  maxAge,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// RecentTweets returns the user's timeline tweets no older than the client's
// max age, newest-first as the gateway returns them. Entries that do not
// parse as tweets (ads, modules, malformed nodes) are skipped.
func (c *Client) RecentTweets(ctx context.Context, username string) ([]domain.Tweet, error) {
	params := url.Values{}
	params.Set("username", username)

	reqURL := c.baseURL + "/user-tweets?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("twitter: build request: %w", err)
	}
	req.Header.Set("x-rapidapi-host", c.host)
	req.Header.Set("x-rapidapi-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twitter: user tweets %s: %w", username, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("twitter: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("twitter: user tweets %s: status %d", username, resp.StatusCode)
	}

	tweets, err := parseTimeline(body)
	if err != nil {
		return nil, fmt.Errorf("twitter: user tweets %s: %w", username, err)
	}

	cutoff := c.now().Add(-c.maxAge)
	fresh := tweets[:0]
	for _, t := range tweets {
		if t.CreatedAt.After(cutoff) {
			fresh = append(fresh, t)
		}
	}
	return fresh, nil
}

// The timeline payload nests tweets several levels deep. Only the fields on
// the path to full_text, id_str and created_at are declared.
type timelineResponse struct {
	Data struct {
		UserResult struct {
			Result struct {
				TimelineResponse struct {
					Timeline struct {
						Instructions []instruction `json:"instructions"`
					} `json:"timeline"`
				} `json:"timeline_response"`
			} `json:"result"`
		} `json:"user_result"`
	} `json:"data"`
}

type instruction struct {
	TypeName string  `json:"__typename"`
	Entries  []entry `json:"entries"`
}

type entry struct {
	Content struct {
		Content struct {
			TweetResult struct {
				Result struct {
					Legacy legacyTweet `json:"legacy"`
					Core   struct {
						UserResult struct {
							Result struct {
								Legacy legacyUser `json:"legacy"`
							} `json:"result"`
						} `json:"user_result"`
					} `json:"core"`
				} `json:"result"`
			} `json:"tweetResult"`
		} `json:"content"`
	} `json:"content"`
}

type legacyTweet struct {
	FullText  string `json:"full_text"`
	IDStr     string `json:"id_str"`
	CreatedAt string `json:"created_at"`
}

type legacyUser struct {
	IDStr       string `json:"id_str"`
	Description string `json:"description"`
}

func parseTimeline(body []byte) ([]domain.Tweet, error) {
	var tl timelineResponse
	if err := json.Unmarshal(body, &tl); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}

	var tweets []domain.Tweet
	for _, inst := range tl.Data.UserResult.Result.TimelineResponse.Timeline.Instructions {
		if inst.TypeName != "TimelineAddEntries" {
			continue
		}
		for _, e := range inst.Entries {
			res := e.Content.Content.TweetResult.Result

			contents := res.Legacy.FullText
			if contents == "" {
				contents = res.Core.UserResult.Result.Legacy.Description
			}
			id := res.Legacy.IDStr
			if id == "" {
				id = res.Core.UserResult.Result.Legacy.IDStr
			}
			if contents == "" || id == "" || res.Legacy.CreatedAt == "" {
				continue
			}

			createdAt, err := time.Parse(createdAtLayout, res.Legacy.CreatedAt)
			if err != nil {
				continue
			}

			tweets = append(tweets, domain.Tweet{
				ID:        id,
				Contents:  contents,
				CreatedAt: createdAt,
			})
		}
	}
	return tweets, nil
}
