package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(err error, completed bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if completed {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	sent  []message
	token *fakeToken
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	c.sent = append(c.sent, message{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFormatTopic(t *testing.T) {
	assert.Equal(t, "emon/postprocess/12", formatTopic("emon/postprocess/{feed_id}", 12))
	assert.Equal(t, "fixed", formatTopic("fixed", 12))
}

func TestPublishLastValue(t *testing.T) {
	client := &fakeClient{token: newToken(nil, true)}
	p := NewLastValuePublisher(client, "emon/postprocess/{feed_id}", discardLogger())

	v := 0.5
	require.NoError(t, p.PublishLastValue(context.Background(), 7, 1_700_000_000, &v))
	require.NoError(t, p.PublishLastValue(context.Background(), 8, 1_700_000_600, nil))

	require.Len(t, client.sent, 2)
	assert.Equal(t, "emon/postprocess/7", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)
	assert.JSONEq(t, `{"time":1700000000,"value":0.5}`, string(client.sent[0].payload))
	assert.JSONEq(t, `{"time":1700000600,"value":null}`, string(client.sent[1].payload))
}

func TestPublishLastValue_Errors(t *testing.T) {
	client := &fakeClient{token: newToken(errors.New("not connected"), true)}
	p := NewLastValuePublisher(client, "t/{feed_id}", discardLogger())
	assert.ErrorContains(t, p.PublishLastValue(context.Background(), 1, 0, nil), "not connected")

	client.token = newToken(nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.PublishLastValue(ctx, 1, 0, nil), context.Canceled)
}
