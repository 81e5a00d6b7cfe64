package analysis

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/longbridgeapp/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

const sampleEvents = `{"id":"a","format":"aod","physicsSelected":true,"triggerClasses":["CINT7-B"],"centrality":5,"tracks":[{"pt":2,"eta":-3,"phi":1,"charge":1,"rAbs":30,"pDCA":1,"triggerMatch":1,"mcLabel":-1}]}

{"format":"esd","triggerClasses":["CMSL7-B"],"qa":{"x":0.1,"y":0.2},"qb":{"x":3,"y":4}}
{not json
{"id":"c","format":"aod","mc":[{"pdg":13,"status":1,"mother":-1,"pt":1}]}
`

func TestReader_Next(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewReader(strings.NewReader(sampleEvents), zap.New(core))

	first, err := r.Next()
	assert.NoError(t, err)
	assert.Equal(t, "a", first.ID)
	assert.Equal(t, 1, len(first.Tracks))
	assert.Equal(t, 30.0, first.Tracks[0].RAbs)
	assert.False(t, first.HasMC())

	second, err := r.Next()
	assert.NoError(t, err)
	assert.Equal(t, "3", second.ID)
	assert.True(t, second.HasFlowVectors())
	assert.Equal(t, 5.0, second.QB.Norm())

	third, err := r.Next()
	assert.NoError(t, err)
	assert.Equal(t, "c", third.ID)
	assert.True(t, third.HasMC())

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))

	assert.Equal(t, 1, r.Skipped())
	assert.Equal(t, 1, logs.Len())
}

func TestReader_LongLines(t *testing.T) {
	big := `{"id":"big","format":"aod","triggerClasses":["` + strings.Repeat("X", 200_000) + `"]}`
	input := `{"id":"a","format":"aod"}` + "\n" + big + "\n" + `{"id":"b","format":"esd"}`

	// longer than the read buffer but within the limit
	r := NewReader(strings.NewReader(input), nil)

	var (
		ids     []string
		trigLen int
	)

	assert.NoError(t, r.Each(context.Background(), func(ev *Event) error {
		ids = append(ids, ev.ID)

		if ev.ID == "big" {
			trigLen = len(ev.TriggerClasses[0])
		}

		return nil
	}))
	assert.Equal(t, []string{"a", "big", "b"}, ids)
	assert.Equal(t, 200_000, trigLen)

	// over the limit: skipped, the run goes on
	core, logs := observer.New(zapcore.WarnLevel)
	r = NewReader(strings.NewReader(input), zap.New(core))
	r.maxLine = 1 << 10

	ids = ids[:0]

	assert.NoError(t, r.Each(context.Background(), func(ev *Event) error {
		ids = append(ids, ev.ID)

		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, 1, r.Skipped())
	assert.Equal(t, 1, logs.FilterMessage("oversized event line skipped").Len())
}

func TestReader_Each(t *testing.T) {
	r := NewReader(strings.NewReader(sampleEvents), nil)

	var ids []string

	err := r.Each(context.Background(), func(ev *Event) error {
		ids = append(ids, ev.ID)

		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "3", "c"}, ids)
}

func TestReader_EachStops(t *testing.T) {
	stop := errors.New("stop")
	r := NewReader(strings.NewReader(sampleEvents), nil)

	err := r.Each(context.Background(), func(*Event) error { return stop })
	assert.True(t, errors.Is(err, stop))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewReader(strings.NewReader(sampleEvents), nil).Each(ctx, func(*Event) error { return nil })
	assert.True(t, errors.Is(err, sentinel.ErrTimeoutOrCanceled))
}
