package remote

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"placesync/internal/saved/domain/model"
	"placesync/internal/saved/domain/repository"
	"placesync/internal/shared/logger"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// subscribeFrame is the frame sent to the feed gateway to start a place
// subscription.
type subscribeFrame struct {
	Action   string `json:"action"`
	PlaceKey string `json:"placeKey"`
}

// aggregateFrame is one counter update pushed by the feed gateway.
type aggregateFrame struct {
	PlaceKey       string `json:"placeKey"`
	WishlistCount  int64  `json:"wishlistCount"`
	FavouriteCount int64  `json:"favouriteCount"`
	Exists         bool   `json:"exists"`
}

// WSAggregateClient implements AggregateFeed over a websocket connection to
// the counter feed gateway, for deployments where aggregates are pushed
// rather than read from Redis. One connection per watched place; the place
// detail surface watches one place at a time, so this stays cheap.
type WSAggregateClient struct {
	feedURL string
	logger  logger.Logger
	dialer  *websocket.Dialer
}

// NewWSAggregateClient creates a websocket-backed aggregate feed.
func NewWSAggregateClient(feedURL string, log logger.Logger) *WSAggregateClient {
	if log == nil {
		log = logger.Noop()
	}
	return &WSAggregateClient{
		feedURL: feedURL,
		logger:  log.WithComponent("ws_aggregate_client"),
		dialer:  &websocket.Dialer{HandshakeTimeout: dialTimeout},
	}
}

var _ repository.AggregateFeed = (*WSAggregateClient)(nil)

// Subscribe dials the gateway, requests the place's counter stream and
// delivers frames in arrival order. The gateway replies to the subscribe
// frame with the current counters, so the first delivery is the initial
// snapshot. The returned cancel closes the connection, which terminates the
// reader and closes the delivery channel.
func (c *WSAggregateClient) Subscribe(ctx context.Context, placeKey string) (<-chan model.AggregateSnapshot, repository.CancelFunc, error) {
	u, err := url.Parse(c.feedURL)
	if err != nil {
		return nil, nil, err
	}
	q := u.Query()
	q.Set("placeKey", placeKey)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.logger.Errorf("Failed to dial aggregate feed for place %s: %v", placeKey, err)
		return nil, nil, err
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(subscribeFrame{Action: "subscribe", PlaceKey: placeKey}); err != nil {
		_ = conn.Close()
		c.logger.Errorf("Failed to send subscribe frame for place %s: %v", placeKey, err)
		return nil, nil, err
	}
	_ = conn.SetWriteDeadline(time.Time{})

	out := make(chan model.AggregateSnapshot, 8)
	done := make(chan struct{})

	go func() {
		defer close(out)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-done:
					// Deliberate teardown.
				default:
					c.logger.Warnf("Aggregate feed read ended for place %s: %v", placeKey, err)
				}
				return
			}
			snap, err := DecodeAggregateFrame(payload)
			if err != nil {
				c.logger.Warnf("Dropping malformed aggregate frame for place %s: %v", placeKey, err)
				continue
			}
			select {
			case out <- snap:
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = conn.Close()
		})
	}
	return out, cancel, nil
}

// DecodeAggregateFrame parses one gateway frame into a snapshot.
func DecodeAggregateFrame(payload []byte) (model.AggregateSnapshot, error) {
	var frame aggregateFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return model.AggregateSnapshot{}, err
	}
	return model.AggregateSnapshot{
		PlaceKey: frame.PlaceKey,
		Aggregate: model.PlaceAggregate{
			WishlistCount:  frame.WishlistCount,
			FavouriteCount: frame.FavouriteCount,
		},
		Exists:    frame.Exists,
		Timestamp: time.Now(),
	}, nil
}
